package cmd

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/warp/extcare-billing/api"
	"github.com/warp/extcare-billing/store"
)

// readRequestFile decodes a calculation request from YAML. JSON input works
// too since YAML is a superset.
func readRequestFile(path string) (api.CalculateRequest, error) {
	var req api.CalculateRequest
	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("failed to read request file: %w", err)
	}
	if err := yaml.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("failed to parse request file %s: %w", path, err)
	}
	return req, nil
}

// prepare returns the store and request a command runs against. With a
// scenario, a throwaway in-memory store is seeded and the scenario's request
// is used unless a file is also given; otherwise the configured store is
// opened and the file is required.
func prepare(ctx context.Context, file, scenarioID string) (store.Store, api.CalculateRequest, error) {
	var req api.CalculateRequest

	if scenarioID != "" {
		st, err := store.Open("memory", "")
		if err != nil {
			return nil, req, err
		}
		sc, err := api.LoadScenario(ctx, st, scenarioID)
		if err != nil {
			st.Close()
			return nil, req, err
		}
		req = sc.Request
		if file != "" {
			if req, err = readRequestFile(file); err != nil {
				st.Close()
				return nil, req, err
			}
		}
		return st, req, nil
	}

	if file == "" {
		return nil, req, fmt.Errorf("either --file or --scenario is required")
	}
	req, err := readRequestFile(file)
	if err != nil {
		return nil, req, err
	}
	st, err := openStore()
	if err != nil {
		return nil, req, err
	}
	return st, req, nil
}
