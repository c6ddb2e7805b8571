package router

import (
	"encoding/json"

	"github.com/passless/passless"
)

// MessageType discriminates request envelopes. Values are part of the wire
// contract with UI surfaces.
type MessageType string

const (
	MsgInitiateOTP   MessageType = "InitiateOTP"
	MsgVerifyOTP     MessageType = "VerifyOTP"
	MsgResendOTP     MessageType = "ResendOTP"
	MsgRefreshToken  MessageType = "RefreshToken"
	MsgLogout        MessageType = "Logout"
	MsgGetAuthState  MessageType = "GetAuthState"
	MsgFetchUserInfo MessageType = "FetchUserInfo"
)

// Request is the envelope sent by UI surfaces.
type Request struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorBody is the wire error shape.
type ErrorBody struct {
	Code    passless.Code `json:"code"`
	Message string        `json:"message"`
}

// Response is the discriminated union answered for every request.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type initiatePayload struct {
	Email string `json:"email"`
}

type verifyPayload struct {
	Code string `json:"code"`
}

func success(data any) Response {
	return Response{Success: true, Data: data}
}

func failure(err error) Response {
	code, message := passless.CodeOf(err)
	return Response{Success: false, Error: &ErrorBody{Code: code, Message: message}}
}
