package api

// ApiResponse is one procedure's reply in the tRPC envelope: exactly one of
// Result or Error is set.
type ApiResponse struct {
	Result *ResultBody `json:"result,omitempty"`
	Error  *ErrorBody  `json:"error,omitempty"`
}

type ResultBody struct {
	Data interface{} `json:"data"`
}

type ErrorBody struct {
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Data    ErrorData `json:"data"`
}

type ErrorData struct {
	Code       string `json:"code"`
	HTTPStatus int    `json:"httpStatus"`
	Path       string `json:"path,omitempty"`
}

func defaultErrorResponse(rpcErr *RPCError, path string) ApiResponse {
	return ApiResponse{Error: &ErrorBody{
		Message: rpcErr.Message,
		Code:    rpcErr.JSONRPCCode(),
		Data: ErrorData{
			Code:       string(rpcErr.Code),
			HTTPStatus: rpcErr.HTTPStatus(),
			Path:       path,
		},
	}}
}

func defaultSuccessResponse(data interface{}) ApiResponse {
	return ApiResponse{Result: &ResultBody{Data: data}}
}

// status is the HTTP status this single response maps to.
func (r ApiResponse) status() int {
	if r.Error != nil {
		return r.Error.Data.HTTPStatus
	}
	return 200
}
