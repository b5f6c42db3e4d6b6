package main

import (
	"flag"
	"log"
	"os"

	"github.com/danmuck/portagent/internal/config"
)

const defaultPath = "cmd/port_agent/config.toml"

func main() {
	kind := flag.String("kind", "tcp", "instrument kind: tcp|serial|digi")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to "+defaultPath+")")
	printCfg := flag.Bool("print", false, "print the effective config after env overrides instead of writing a template")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate || *printCfg {
		path := *input
		if path == "" {
			path = defaultPath
		}
		cfg, err := config.Load(path)
		if err != nil {
			log.Fatal(err)
		}
		if *printCfg {
			out, err := config.Encode(cfg)
			if err != nil {
				log.Fatal(err)
			}
			_, _ = os.Stdout.Write(out)
			return
		}
		log.Printf("Validated %s config at %s (id=%s)", cfg.InstrumentType, path, cfg.ID)
		return
	}

	target := *output
	if target == "" {
		target = defaultPath
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}
