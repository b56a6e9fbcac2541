// Package server exposes the nanospectrum toolkit as an MCP (Model Context
// Protocol) tool server.
//
// # Protocol
//
// The server speaks JSON-RPC 2.0, one message per line:
//   - Input: requests on the reader passed to Run (stdin for the serve command)
//   - Output: responses on the writer passed to Run (stdout)
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Prediction:
//   - spectrum_predict: Predict a micrograph's spectrum with a registered predictor
//   - morphology_extract: Particle features, optionally with a contour overlay
//
// Figures:
//   - figure_classify: Classify the two halves of a composite figure
//   - figure_digitize: Digitize a plot, or split and process a whole figure
//
// Registry and evaluation:
//   - models_list: Registered predictors and their metadata
//   - evaluation_run: Batch evaluation over a data directory
//
// # Image Caching
//
// Decoded images are cached by path for the lifetime of the server, so
// repeated tool calls on one micrograph decode it once.
//
// # Error Handling
//
// Tool failures, including an unknown predictor name, are JSON-RPC error
// responses with code -32000 and the Go error string as data. Malformed
// lines get -32700 and unknown methods -32601.
//
// # Usage
//
//	srv := server.New(server.Deps{Models: registry, Evaluator: orch})
//	if err := srv.Run(ctx, os.Stdin, os.Stdout); err != nil {
//	    return err
//	}
package server
