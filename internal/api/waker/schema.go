package waker

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/openchami/node-waker/pkg/clients"
	"github.com/xeipuuv/gojsonschema"
)

// ValidationErrorResponse is one problem found in a request body.
type ValidationErrorResponse struct {
	Message string `json:"message"`
}

// ClientSchema is the JSON schema of a client entry.
func ClientSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	return reflector.Reflect(&clients.Client{})
}

type validator struct {
	schema gojsonschema.JSONLoader
}

func newValidator() (*validator, error) {
	data, err := json.Marshal(ClientSchema())
	if err != nil {
		return nil, err
	}
	return &validator{schema: gojsonschema.NewBytesLoader(data)}, nil
}

func (v *validator) validate(body []byte) []*ValidationErrorResponse {
	result, err := gojsonschema.Validate(v.schema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return []*ValidationErrorResponse{{Message: err.Error()}}
	}

	var errs []*ValidationErrorResponse
	if !result.Valid() {
		for _, desc := range result.Errors() {
			errs = append(errs, &ValidationErrorResponse{Message: desc.String()})
		}
	}
	return errs
}
