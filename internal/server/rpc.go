package server

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/copyleftdev/descent/internal/errors"
)

// JSON-RPC 2.0 error codes.
const (
	rpcParseError     = -32700
	rpcInvalidRequest = -32600
	rpcMethodNotFound = -32601
	rpcInvalidParams  = -32602
	rpcServerError    = -32000
)

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      interface{}       `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params,omitempty"`
}

type jobParams struct {
	ID string `json:"id"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests. Params are positional with a
// single object argument.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, rpcParseError, "Parse error", nil)
		return
	}

	if request.JSONRPC != "2.0" {
		s.respondWithError(w, rpcInvalidRequest, "Invalid Request", request.ID)
		return
	}

	var result interface{}
	var err error

	switch request.Method {
	case "minimize.start":
		var req MinimizeRequest
		if err = decodeParams(request.Params, &req); err == nil {
			var view StatusView
			view, err = s.startJob(req)
			result = map[string]string{"id": view.ID, "status": view.Status}
		}
	case "minimize.status":
		var p jobParams
		if err = decodeParams(request.Params, &p); err == nil {
			result, err = s.jobStatus(p.ID)
		}
	case "minimize.cancel":
		var p jobParams
		if err = decodeParams(request.Params, &p); err == nil {
			err = s.cancelJob(p.ID)
			result = map[string]string{"status": StatusCancelled}
		}
	case "objectives.list":
		result = listObjectives()
	case "results.summary":
		result, err = s.summary()
	default:
		s.respondWithError(w, rpcMethodNotFound, "Method not found", request.ID)
		return
	}

	if err != nil {
		code := rpcServerError
		if apperrors.StatusCode(err) == http.StatusBadRequest {
			code = rpcInvalidParams
		}
		s.respondWithError(w, code, err.Error(), request.ID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

func decodeParams(params []json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return apperrors.BadRequest("missing required parameters")
	}
	if err := json.Unmarshal(params[0], v); err != nil {
		return apperrors.BadRequest("invalid parameter format: %v", err)
	}
	return nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Warn("JSON-RPC error", map[string]interface{}{
		"code":    code,
		"message": message,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	})
}
