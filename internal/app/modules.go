package app

import (
	"github.com/conveyorci/conveyor/internal/registry"
	"github.com/conveyorci/conveyor/modules/cache"
	"github.com/conveyorci/conveyor/modules/checkout"
	"github.com/conveyorci/conveyor/modules/echo"
	"github.com/conveyorci/conveyor/modules/http_client"
	"github.com/conveyorci/conveyor/modules/notify"
	"github.com/conveyorci/conveyor/modules/shell"
)

// coreModules is the definitive list of all modules that are compiled into
// the conveyor binary.
var coreModules = []registry.Module{
	&cache.Module{},
	&checkout.Module{},
	&echo.Module{},
	&http_client.Module{},
	&notify.Module{},
	&shell.Module{},
}
