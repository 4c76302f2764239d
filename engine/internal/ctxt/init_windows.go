// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package ctxt

import (
	_ "github.com/gviegas/meshdraw/driver/d3d12"
)
