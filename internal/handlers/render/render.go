package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nkiryanov/usersvc/internal/apperrors"
)

// Wire messages of classified errors
const (
	MessageRecordAlreadyExists = "This record violates a unique constraint"
	MessageRecordNotFound      = "This record does not exist"
	MessageDatabaseError       = "Database error"
	MessageOperationCanceled   = "The running operation was canceled"
)

var validate = validator.New()

func init() {
	// Return on 'TagName' json tag instead of struct name
	// Look at documentation of 'RegisterTagNameFunc' for more details
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		// skip if tag key says it should be ignored
		if name == "-" {
			return ""
		}
		return name
	})
}

type Struct any

type ErrorResponse struct {
	Err    string            `json:"err"`
	Fields map[string]string `json:"fields,omitempty"`
}

func JSON(w http.ResponseWriter, data any) {
	jsonWithStatus(w, data, http.StatusOK)
}

// Render error message with status code
func Error(w http.ResponseWriter, message string, code int) {
	jsonWithStatus(w, ErrorResponse{Err: message}, code)
}

// AppError renders classified error. Unclassified errors are rendered as database errors
//
//	RecordAlreadyExists -> 400
//	RecordNotFound      -> 404
//	DatabaseError       -> 500 "Database error: <cause>"
//	OperationCanceled   -> 500
func AppError(w http.ResponseWriter, err error) {
	code, message := AppErrorStatus(err)
	Error(w, message, code)
}

// AppErrorStatus returns status code and message to render for err
func AppErrorStatus(err error) (int, string) {
	switch apperrors.KindOf(err) {
	case apperrors.KindRecordAlreadyExists:
		return http.StatusBadRequest, MessageRecordAlreadyExists
	case apperrors.KindRecordNotFound:
		return http.StatusNotFound, MessageRecordNotFound
	case apperrors.KindOperationCanceled:
		return http.StatusInternalServerError, MessageOperationCanceled
	default:
		return http.StatusInternalServerError, MessageDatabaseError + ": " + databaseCause(err)
	}
}

func databaseCause(err error) string {
	var dbErr *apperrors.DatabaseError
	if errors.As(err, &dbErr) && dbErr.Cause != nil {
		return dbErr.Cause.Error()
	}
	return err.Error()
}

// Render json DecodeError
func DecodeError(w http.ResponseWriter, err error) {
	var message string

	// Try to provide more specific error message based on error type
	switch err := err.(type) {
	case *json.UnmarshalTypeError:
		message = fmt.Sprintf("Invalid data type for field '%s'", err.Field)
	default:
		message = fmt.Sprintf("Failed to parse JSON: %s", err.Error())
	}

	Error(w, message, http.StatusBadRequest)
}

// Render ValidationErrors
func ValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	response := ErrorResponse{
		Err:    "Request validation failed",
		Fields: make(map[string]string, len(errs)),
	}

	// Create user-friendly error messages based on validation tag
	for _, fieldError := range errs {
		var message string
		switch fieldError.Tag() {
		case "required":
			message = "This field is required"
		case "min":
			message = fmt.Sprintf("Value is too short (minimum %s)", fieldError.Param())
		case "max":
			message = fmt.Sprintf("Value is too long (maximum %s)", fieldError.Param())
		default:
			message = "Invalid value"
		}

		response.Fields[fieldError.Field()] = message
	}

	jsonWithStatus(w, response, http.StatusBadRequest)
}

// BindAndValidate decodes JSON request body into type T and validates it using struct tags.
// Returns the decoded value and writes appropriate error responses for decoding or validation failures.
func BindAndValidate[T Struct](w http.ResponseWriter, r *http.Request) (T, error) {
	var value T

	err := json.NewDecoder(r.Body).Decode(&value)
	if err != nil {
		DecodeError(w, err)
		return value, err
	}

	err = validate.Struct(value)
	if err != nil {
		// pretty sure cast will be ok cause expecting T is valid struct
		errs := err.(validator.ValidationErrors)
		ValidationErrors(w, errs)
		return value, err
	}

	return value, nil
}

// jsonWithStatus sends data as json and enforces status code
func jsonWithStatus(w http.ResponseWriter, data any, code int) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)

	if err := enc.Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}
