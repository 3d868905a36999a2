package validators

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/bookings-backend/pkg/errors"
)

const maxQueryValueLen = 64

// QueryString returns the trimmed query value cut to maxQueryValueLen runes.
func QueryString(r *http.Request, key string) string {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if runes := []rune(v); len(runes) > maxQueryValueLen {
		v = string(runes[:maxQueryValueLen])
	}
	return v
}

// BindQuery copies query values into the string fields of dest tagged
// `query:"name"` and validates the result. dest must be a struct pointer.
func BindQuery(r *http.Request, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, errors.New("query target must be a struct pointer"), "bad query binding")
	}
	elem := rv.Elem()
	for i := range elem.NumField() {
		field := elem.Type().Field(i)
		name := tagName(field, "query")
		if name == "" || field.Type.Kind() != reflect.String || !elem.Field(i).CanSet() {
			continue
		}
		elem.Field(i).SetString(QueryString(r, name))
	}
	return Struct(dest)
}

// PathUUID parses a chi URL parameter as a non-nil uuid.
func PathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, name)))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid path parameter").WithDetails(map[string]any{"field": name})
	}
	return id, nil
}
