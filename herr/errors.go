package herr

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type Error struct {
	Error       error
	HTTPMessage string
	Desc        string
	Code        int
}

type Wrap func(w http.ResponseWriter, r *http.Request) *Error

func (fn Wrap) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if e := fn(w, r); e != nil {
		slog.ErrorContext(r.Context(), "error in handler",
			"desc", e.Desc,
			"httpMessage", e.HTTPMessage,
			"code", e.Code,
			"err", e.Error,
			"path", r.URL.Path,
		)
		JSON(w, e.Code, map[string]string{"error": e.HTTPMessage})
	}
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("error encoding response", "err", err)
	}
}

func Internal(err error, desc string) *Error {
	return &Error{
		HTTPMessage: "Internal server error",
		Desc:        desc,
		Code:        http.StatusInternalServerError,
		Error:       err,
	}
}

func Unauthorized(err error, desc string) *Error {
	return &Error{
		HTTPMessage: "Unauthorized",
		Desc:        desc,
		Code:        http.StatusUnauthorized,
		Error:       err,
	}
}

func NotFound(desc string) *Error {
	return &Error{
		HTTPMessage: "Not found",
		Desc:        desc,
		Code:        http.StatusNotFound,
	}
}

// NotFoundHandler answers every request with the JSON not-found body.
func NotFoundHandler() http.Handler {
	return Wrap(func(w http.ResponseWriter, r *http.Request) *Error {
		return NotFound("no route for " + r.Method + " " + r.URL.Path)
	})
}
