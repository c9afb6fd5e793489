package config

import "embed"

//go:embed seeds/instances.json seeds/tools.json seeds/prompts.json seeds/server.json
var seedFS embed.FS

// seedBytes returns the embedded seed document for kind.
func seedBytes(kind Kind) ([]byte, error) {
	return seedFS.ReadFile("seeds/" + kind.FileName())
}
