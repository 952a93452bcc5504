package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yaswanthhh/ev-charge-optimizer/core/model"
)

var optimizeFile string

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Compute a schedule from a request document without dispatching it",
	RunE:  optimize,
}

func init() {
	optimizeCmd.Flags().StringVarP(&optimizeFile, "file", "f", "-", "request file (JSON or YAML), - reads JSON from stdin")
	rootCmd.AddCommand(optimizeCmd)
}

func optimize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	req, err := readRequest(cmd.InOrStdin(), optimizeFile)
	if err != nil {
		return err
	}
	out, err := offlineService(cfg).Optimize(req)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

// readRequest decodes a request document. YAML documents use the same keys
// as the JSON API.
func readRequest(stdin io.Reader, path string) (model.OptimizationRequest, error) {
	var req model.OptimizationRequest
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return req, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc map[string]any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return req, fmt.Errorf("decode request: %w", err)
		}
		if raw, err = json.Marshal(doc); err != nil {
			return req, fmt.Errorf("decode request: %w", err)
		}
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
