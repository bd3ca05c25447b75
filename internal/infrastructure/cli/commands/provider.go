package commands

import "github.com/doeshing/mindtrail/internal/app"

// ContainerProvider returns the application container, building it on first use.
type ContainerProvider func() (*app.Container, error)
