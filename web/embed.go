package web

import (
	"embed"
)

//go:embed static/*
var staticFiles embed.FS

func GetFile(name string) ([]byte, error) {
	return staticFiles.ReadFile("static/" + name)
}
