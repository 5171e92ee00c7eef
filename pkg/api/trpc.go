package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const maxBodyBytes = 1 << 20

// Handler serves single and batched calls. The procedure names come from
// the :path parameter, comma separated when ?batch=1 is set.
func (r *Router) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := strings.TrimPrefix(c.Param("path"), "/")
		isBatch := c.Query("batch") == "1"

		var procType ProcedureType
		switch c.Request.Method {
		case http.MethodGet:
			procType = Query
		case http.MethodPost:
			procType = Mutation
		default:
			rpcErr := newRPCError(ErrMethodNotSupported, "Unsupported %s-request", c.Request.Method)
			c.JSON(rpcErr.HTTPStatus(), defaultErrorResponse(rpcErr, path))
			return
		}

		names := []string{path}
		if isBatch {
			names = strings.Split(path, ",")
		}

		inputs, rpcErr := readInputs(c, isBatch, len(names))
		if rpcErr != nil {
			log.Warn().Err(rpcErr).Str("path", path).Msg("Unreadable RPC input")
			c.JSON(rpcErr.HTTPStatus(), defaultErrorResponse(rpcErr, path))
			return
		}

		responses := make([]ApiResponse, len(names))
		var g errgroup.Group
		for i, name := range names {
			g.Go(func() error {
				responses[i] = r.call(c.Request.Context(), procType, name, inputs[i])
				return nil
			})
		}
		_ = g.Wait()

		if !isBatch {
			c.JSON(responses[0].status(), responses[0])
			return
		}
		c.JSON(batchStatus(responses), responses)
	}
}

func (r *Router) call(ctx context.Context, procType ProcedureType, name string, input json.RawMessage) ApiResponse {
	proc, ok := r.procedures[name]
	if !ok {
		rpcErr := newRPCError(ErrNotFound, "No %q-procedure on path %q", procType, name)
		return defaultErrorResponse(rpcErr, name)
	}
	if proc.Type != procType {
		method := http.MethodGet
		if procType == Mutation {
			method = http.MethodPost
		}
		rpcErr := newRPCError(ErrMethodNotSupported, "Unsupported %s-request to %s procedure at path %q", method, proc.Type, name)
		return defaultErrorResponse(rpcErr, name)
	}

	data, err := proc.Resolve(ctx, input)
	if err != nil {
		rpcErr := toRPCError(err)
		event := log.Warn()
		if rpcErr.Code == ErrInternal {
			event = log.Error()
		}
		event.Err(err).Str("path", name).Str("code", string(rpcErr.Code)).Msg("Procedure failed")
		return defaultErrorResponse(rpcErr, name)
	}
	return defaultSuccessResponse(data)
}

// readInputs returns one raw input per call. GET carries inputs in the input
// query parameter, POST in the body; batches key them by call index.
func readInputs(c *gin.Context, isBatch bool, count int) ([]json.RawMessage, *RPCError) {
	var raw []byte
	if c.Request.Method == http.MethodGet {
		raw = []byte(c.Query("input"))
	} else {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
		if err != nil {
			return nil, &RPCError{Code: ErrParse, Message: "Unable to read request body", Cause: err}
		}
		if len(body) > maxBodyBytes {
			return nil, newRPCError(ErrPayloadTooLarge, "Request body exceeds %d bytes", maxBodyBytes)
		}
		raw = body
	}

	inputs := make([]json.RawMessage, count)
	if len(strings.TrimSpace(string(raw))) == 0 {
		return inputs, nil
	}
	if !json.Valid(raw) {
		return nil, newRPCError(ErrParse, "Unable to parse input as JSON")
	}
	if !isBatch {
		inputs[0] = raw
		return inputs, nil
	}

	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keyed); err != nil {
		return nil, &RPCError{Code: ErrBadRequest, Message: "Batch input must be an object keyed by call index", Cause: err}
	}
	for i := range inputs {
		inputs[i] = keyed[strconv.Itoa(i)]
	}
	return inputs, nil
}

// batchStatus is the shared status of all calls, or 207 when they differ.
func batchStatus(responses []ApiResponse) int {
	status := 0
	for _, response := range responses {
		s := response.status()
		if status == 0 {
			status = s
		} else if status != s {
			return http.StatusMultiStatus
		}
	}
	if status == 0 {
		return http.StatusOK
	}
	return status
}
