package main

import (
	"flag"
	"log"

	"github.com/mogaika/geoscene_viewer/config"
	"github.com/mogaika/geoscene_viewer/web"
)

func main() {
	var addr, sceneDir, webDir, baseURI, fontPath, cfgPath string
	flag.StringVar(&addr, "i", "", "Address of server")
	flag.StringVar(&sceneDir, "scenes", "", "Path to folder with scene and model files")
	flag.StringVar(&webDir, "web", "", "Path to viewer web files")
	flag.StringVar(&baseURI, "baseuri", "", "Base uri override for model resource resolution")
	flag.StringVar(&fontPath, "font", "", "BMFont file for server-side label layout")
	flag.StringVar(&cfgPath, "config", "", "Path to yaml config file")
	flag.Parse()

	var cfg *config.Config
	var err error
	if cfgPath != "" {
		cfg, err = config.Load(cfgPath)
		if err != nil {
			log.Fatal(err)
		}
	} else {
		cfg = config.Default()
	}

	if addr != "" {
		cfg.Addr = addr
	}
	if sceneDir != "" {
		cfg.SceneDir = sceneDir
	}
	if webDir != "" {
		cfg.WebDir = webDir
	}
	if baseURI != "" {
		cfg.BaseURI = baseURI
	}
	if fontPath != "" {
		cfg.FontPath = fontPath
	}

	if err := web.StartServer(cfg); err != nil {
		log.Fatal(err)
	}
}
