package toolsurface

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"memkernel/internal/domain"
)

// errorResult renders any error as a tool-call failure carrying the
// UserFacingError shape (§7's to_user_friendly()) rather than a bare Go
// error string, so callers can branch on Code without string matching.
func errorResult(err error) *mcp.CallToolResult {
	var ke *domain.KernelError
	var friendly domain.UserFacingError
	if errors.As(err, &ke) {
		friendly = ke.UserFriendly()
	} else {
		friendly = domain.UserFacingError{Code: domain.CodeUnknown, Message: err.Error()}
	}
	body, marshalErr := json.Marshal(friendly)
	if marshalErr != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(string(body))
}

// jsonResult marshals v as the tool-call's successful text payload.
func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(body)), nil
}
