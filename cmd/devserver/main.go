package main

import (
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/labstack/gommon/color"

	"github.com/respondr/respondr/internal/pkg/devserver"
)

func main() {
	goapp.StartWithDefault()

	printBanner()

	cfg := goapp.Config
	data := &devserver.Data{}
	data.Port = cfg.GetInt("port")
	if data.Port == 0 {
		data.Port = 8000
	}
	data.Sessions = devserver.NewSessionCache()

	err := devserver.StartWebServer(data)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start web server")
	}
}

var (
	version = "DEV"
)

func printBanner() {
	banner := `
                                           __
   ________  _________  ____  ____  ____/ /____
  / ___/ _ \/ ___/ __ \/ __ \/ __ \/ __  / ___/
 / /  /  __(__  ) /_/ / /_/ / / / / /_/ / /
/_/   \___/____/ .___/\____/_/ /_/\__,_/_/
              /_/        dev backend   v: %s

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/respondr/respondr"))
}
