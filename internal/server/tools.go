package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty(desc string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": desc,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Prediction
		{
			Name:        "spectrum_predict",
			Description: "Predict the absorption spectrum of a particle micrograph with a registered predictor. Returns the spectrum, its peak and FWHM in nm, and the morphology features it was predicted from.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":  pathProperty("Absolute path to the micrograph"),
					"model": pathProperty("Registered predictor name"),
				},
				"required": []string{"path", "model"},
			},
		},
		{
			Name:        "morphology_extract",
			Description: "Segment dark particles in a micrograph and return the feature vector (mean diameter, diameter std, count, mean aspect ratio) with every particle found.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":         pathProperty("Absolute path to the micrograph"),
					"overlay_path": pathProperty("Optional path to write a PNG with particle contours drawn in red"),
				},
				"required": []string{"path"},
			},
		},

		// Figures
		{
			Name:        "figure_classify",
			Description: "Split a composite figure at its vertical midline and classify each half as micrograph, plot or empty.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the figure"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "figure_digitize",
			Description: "Digitize absorption curves. With out_dir, the figure is split into halves and micrograph panels and curve CSVs are written there. Without it, the whole image is read as one plot and the curve is returned.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":    pathProperty("Absolute path to the figure or plot"),
					"out_dir": pathProperty("Optional directory for extracted panels and curves"),
				},
				"required": []string{"path"},
			},
		},

		// Registry and evaluation
		{
			Name:        "models_list",
			Description: "List registered predictors with their metadata.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "evaluation_run",
			Description: "Evaluate predictors on every image under a data directory and return the run summary. Per-sample results are written to the run's output directory.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"models": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Predictor names, or [\"all\"]. Default all",
					},
					"data_dir": pathProperty("Directory searched recursively for sample images"),
					"tolerance_nm": map[string]interface{}{
						"type":        "number",
						"description": "Peak tolerance in nm. Default 5.0",
						"default":     5.0,
					},
				},
				"required": []string{"data_dir"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
