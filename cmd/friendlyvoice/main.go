package main

import (
	"os"

	"github.com/d60-Lab/friendlyvoice/cmd/friendlyvoice/commands"
)

// Version information, set during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// @title           FriendlyVoice API
// @version         1.0
// @description     语音社交后端：会话、关注关系、私信、动态流与社区目录
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
