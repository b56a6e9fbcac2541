package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ironsheep/nanospectrum/internal/detection"
	"github.com/ironsheep/nanospectrum/internal/imaging"
	"github.com/ironsheep/nanospectrum/internal/morphology"
	"github.com/ironsheep/nanospectrum/internal/predictor"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "spectrum_predict").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool failed", "tool", params.Name, "error", err)
		return errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	case "spectrum_predict":
		return s.handleSpectrumPredict(ctx, args)
	case "morphology_extract":
		return s.handleMorphologyExtract(args)

	case "figure_classify":
		return s.handleFigureClassify(args)
	case "figure_digitize":
		return s.handleFigureDigitize(args)

	case "models_list":
		return s.handleModelsList()
	case "evaluation_run":
		return s.handleEvaluationRun(ctx, args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

var errNoRegistry = errors.New("no predictor registry configured")

// === Prediction Handlers ===

type spectrumPredictArgs struct {
	Path  string `json:"path"`
	Model string `json:"model"`
}

type spectrumPredictResult struct {
	Model    string `json:"model"`
	Strategy string `json:"strategy"`
	*predictor.Prediction
}

func (s *Server) handleSpectrumPredict(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a spectrumPredictArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if s.deps.Models == nil {
		return nil, errNoRegistry
	}

	h, err := s.deps.Models.GetOrLoad(ctx, a.Model)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	pred, err := h.PredictImage(img)
	if err != nil {
		return nil, err
	}
	return &spectrumPredictResult{Model: h.Name(), Strategy: h.Strategy(), Prediction: pred}, nil
}

type morphologyExtractArgs struct {
	Path        string `json:"path"`
	OverlayPath string `json:"overlay_path"`
}

type morphologyExtractResult struct {
	*morphology.Result
	OverlayPath string `json:"overlay_path,omitempty"`
}

func (s *Server) handleMorphologyExtract(args json.RawMessage) (interface{}, error) {
	var a morphologyExtractArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	res, err := morphology.Extract(img, s.deps.Morphology)
	if err != nil {
		return nil, err
	}
	out := &morphologyExtractResult{Result: res}

	if a.OverlayPath != "" {
		overlay, err := morphology.Overlay(img, s.deps.Morphology)
		if err != nil {
			return nil, err
		}
		if err := imaging.Save(overlay, a.OverlayPath); err != nil {
			return nil, err
		}
		out.OverlayPath = a.OverlayPath
	}
	return out, nil
}

// === Figure Handlers ===

type figurePathArgs struct {
	Path   string `json:"path"`
	OutDir string `json:"out_dir"`
}

type classifiedPanel struct {
	Position imaging.Half `json:"position"`
	Width    int          `json:"width"`
	Height   int          `json:"height"`
	*detection.PanelAnalysis
}

func (s *Server) handleFigureClassify(args json.RawMessage) (interface{}, error) {
	var a figurePathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	var panels []classifiedPanel
	for _, p := range imaging.SplitHalves(img) {
		b := p.Image.Bounds()
		panels = append(panels, classifiedPanel{
			Position:      p.Position,
			Width:         b.Dx(),
			Height:        b.Dy(),
			PanelAnalysis: detection.AnalyzePanel(p.Image, s.deps.Figure.Panel),
		})
	}
	return map[string]interface{}{"path": a.Path, "panels": panels}, nil
}

type digitizedCurve struct {
	Wavelengths []float64            `json:"wavelengths"`
	Intensity   []float64            `json:"intensity"`
	Source      detection.MaskSource `json:"mask_source"`
	Pixels      int                  `json:"pixels"`
}

func (s *Server) handleFigureDigitize(args json.RawMessage) (interface{}, error) {
	var a figurePathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	if a.OutDir != "" {
		return detection.ProcessFigure(a.Path, a.OutDir, s.deps.Figure)
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	c := detection.Digitize(img, s.deps.Figure.Digitizer)
	if c == nil {
		return nil, fmt.Errorf("no curve detected in %s", a.Path)
	}
	return &digitizedCurve{
		Wavelengths: c.Spectrum.Wavelengths,
		Intensity:   c.Spectrum.Intensity,
		Source:      c.Source,
		Pixels:      c.Pixels,
	}, nil
}

// === Registry and Evaluation Handlers ===

func (s *Server) handleModelsList() (interface{}, error) {
	if s.deps.Models == nil {
		return nil, errNoRegistry
	}
	names, err := s.deps.Models.Names()
	if err != nil {
		return nil, err
	}

	models := make([]predictor.Metadata, 0, len(names))
	for _, name := range names {
		meta, err := s.deps.Models.Metadata(name)
		if err != nil {
			s.logger.Warn("unreadable predictor metadata", "name", name, "error", err)
			continue
		}
		models = append(models, meta)
	}
	return map[string]interface{}{"count": len(models), "models": models}, nil
}

type evaluationRunArgs struct {
	Models      []string `json:"models"`
	DataDir     string   `json:"data_dir"`
	ToleranceNM *float64 `json:"tolerance_nm"`
}

func (s *Server) handleEvaluationRun(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a evaluationRunArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required")
	}
	tol := s.deps.ToleranceNM
	if a.ToleranceNM != nil {
		tol = *a.ToleranceNM
	}
	if tol < 0 {
		return nil, fmt.Errorf("tolerance_nm must not be negative")
	}
	if s.deps.Evaluator == nil {
		return nil, fmt.Errorf("evaluation is not configured")
	}
	return s.deps.Evaluator.Run(ctx, a.Models, a.DataDir, tol)
}
