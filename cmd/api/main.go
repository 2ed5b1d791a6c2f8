package main

import (
	"go.uber.org/fx"

	"github.com/cairodesk/backoffice/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
