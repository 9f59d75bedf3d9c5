package response

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
)

type Response[T any] struct {
	Status  int    `json:"status"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
	Error   T      `json:"error,omitempty"`
}

var snakeCaseBoundary = regexp.MustCompile("([a-z0-9])([A-Z])")

func JSONCreatedResponse(w http.ResponseWriter, data any, message string) error {
	if message == "" {
		message = "Request successful"
	}

	if convertedData, ok := data.(map[string]any); ok {
		data = ConvertKeysToSnakeCase(convertedData)
	}

	response := &Response[any]{
		Status:  http.StatusCreated,
		Success: true,
		Message: message,
		Data:    data,
	}

	return JSONWithHeaders(w, response, nil)
}

func JSONOkResponse(w http.ResponseWriter, data any, message string, headers http.Header) error {
	if message == "" {
		message = "Request successful"
	}

	if convertedData, ok := data.(map[string]any); ok {
		data = ConvertKeysToSnakeCase(convertedData)
	}

	response := &Response[any]{
		Status:  http.StatusOK,
		Success: true,
		Message: message,
		Data:    data,
	}

	return JSONWithHeaders(w, response, headers)
}

func JSONErrorResponse(w http.ResponseWriter, err any, message string, status int, headers http.Header) error {
	if message == "" {
		message = "Request failed"
	}
	if status == 0 {
		status = http.StatusInternalServerError
	}
	response := &Response[any]{
		Status:  status,
		Success: false,
		Message: message,
		Error:   err,
	}

	return JSONWithHeaders(w, response, headers)
}

func JSON[T any](w http.ResponseWriter, response *Response[T]) error {
	return JSONWithHeaders(w, response, nil)
}

func JSONWithHeaders[T any](w http.ResponseWriter, response *Response[T], headers http.Header) error {
	js, err := json.MarshalIndent(response, "", "\t")
	if err != nil {
		return err
	}

	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(response.Status)

	w.Write(js)

	return nil
}

func toSnakeCase(s string) string {
	snake := snakeCaseBoundary.ReplaceAllString(s, "${1}_${2}")
	return strings.ToLower(snake)
}

// ConvertKeysToSnakeCase rewrites camelCase keys of a payload map, including nested maps and
// maps inside slices.
func ConvertKeysToSnakeCase(data map[string]any) map[string]any {
	snakeData := make(map[string]any, len(data))

	for key, value := range data {
		snakeData[toSnakeCase(key)] = convertValue(value)
	}
	return snakeData
}

func convertValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return ConvertKeysToSnakeCase(v)
	case []map[string]any:
		out := make([]map[string]any, len(v))
		for i := range v {
			out[i] = ConvertKeysToSnakeCase(v[i])
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = convertValue(v[i])
		}
		return out
	}
	return value
}
