// handler/main_test.go
package handler

import (
	"go-auth-api/config"
	"go-auth-api/logger"
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	config.LoadConfig("../")
	logger.Init(config.AppConfig.Server.Environment)
	os.Exit(m.Run())
}
