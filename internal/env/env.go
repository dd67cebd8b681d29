package env

import (
	"github.com/thatsimonsguy/daikin-climate/internal/config"
)

var Cfg *config.Config
