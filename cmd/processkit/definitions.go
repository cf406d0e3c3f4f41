package main

import (
	"fmt"
	"os"

	"github.com/dogmatiq/processkit/command"
	"github.com/dogmatiq/processkit/internal/simulator"
	"github.com/tidwall/gjson"
)

// defaultDefinitions is the set of definitions deployed to the simulator
// when no definitions file is configured.
var defaultDefinitions = []simulator.Definition{
	{
		ProcessDefinition: command.ProcessDefinition{ID: "order:1", Key: "order", Name: "Order", Version: 1},
		Subprocesses:      []string{"payment", "shipping"},
		StartMessage:      "order-placed",
	},
	{
		ProcessDefinition: command.ProcessDefinition{ID: "payment:1", Key: "payment", Name: "Payment", Version: 1},
	},
	{
		ProcessDefinition: command.ProcessDefinition{ID: "shipping:1", Key: "shipping", Name: "Shipping", Version: 1},
	},
}

// loadDefinitions reads simulator definitions from the JSON file at path.
//
// The file contains an array of objects with the properties "id", "key",
// "name", "version", "subprocesses" and "startMessage". If path is empty,
// defaultDefinitions is returned.
func loadDefinitions(path string) ([]simulator.Definition, error) {
	if path == "" {
		return defaultDefinitions, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	defs, err := parseDefinitions(data)
	if err != nil {
		return nil, fmt.Errorf("unable to load definitions from %s: %w", path, err)
	}

	return defs, nil
}

// parseDefinitions parses a JSON array of simulator definitions.
func parseDefinitions(data []byte) ([]simulator.Definition, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON")
	}

	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, fmt.Errorf("expected an array of definitions")
	}

	var (
		defs []simulator.Definition
		err  error
	)

	root.ForEach(func(_, v gjson.Result) bool {
		d := simulator.Definition{
			ProcessDefinition: command.ProcessDefinition{
				ID:      v.Get("id").String(),
				Key:     v.Get("key").String(),
				Name:    v.Get("name").String(),
				Version: int(v.Get("version").Int()),
			},
			StartMessage: v.Get("startMessage").String(),
		}

		if d.ID == "" || d.Key == "" {
			err = fmt.Errorf("definition %d must have an id and a key", len(defs))
			return false
		}

		if d.Version == 0 {
			d.Version = 1
		}

		for _, s := range v.Get("subprocesses").Array() {
			d.Subprocesses = append(d.Subprocesses, s.String())
		}

		defs = append(defs, d)
		return true
	})

	return defs, err
}
