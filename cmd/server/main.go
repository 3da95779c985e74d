package main

import "veriboard/internal/app"

// @title                       VeriBoard API
// @version                     1.0
// @description                 Job verification backend: email code authentication and employment/company verification.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	app.Run()
}
