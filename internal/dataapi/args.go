package dataapi

import (
	"strconv"
	"time"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
)

type order struct {
	Field Field
	Desc  bool
}

// Args are the decoded arguments of one call. Values are typed per field kind.
type Args struct {
	Where   Row
	Data    Row
	OrderBy []order
	Take    *int
	Skip    *int
}

// ParseArgs decodes the json arguments of a call on m. Empty input means no arguments.
func ParseArgs(m *Model, raw []byte) (*Args, error) {
	args := &Args{}
	if len(raw) == 0 {
		return args, nil
	}

	if !gjson.ValidBytes(raw) {
		return nil, invalidRequest("invalid json arguments")
	}

	root := gjson.ParseBytes(raw)
	if root.Type == gjson.Null {
		return args, nil
	}

	if !root.IsObject() {
		return nil, invalidRequest("arguments must be an object")
	}

	var err error

	root.ForEach(func(key, value gjson.Result) bool {
		switch key.Str {
		case "where":
			args.Where, err = parseValues(m, "where", value)
		case "data":
			args.Data, err = parseValues(m, "data", value)
		case "orderBy":
			args.OrderBy, err = parseOrderBy(m, value)
		case "take":
			args.Take, err = parseCount("take", value)
		case "skip":
			args.Skip, err = parseCount("skip", value)
		default:
			err = invalidRequest("unknown argument %q", key.Str)
		}

		return err == nil
	})
	if err != nil {
		return nil, err
	}

	return args, nil
}

func parseValues(m *Model, arg string, value gjson.Result) (Row, error) {
	if value.Type == gjson.Null {
		return nil, nil
	}

	if !value.IsObject() {
		return nil, invalidRequest("%s must be an object", arg)
	}

	row := Row{}

	var err error

	value.ForEach(func(key, v gjson.Result) bool {
		f, ok := m.field(key.Str)
		if !ok {
			err = invalidRequest("unknown field %q in %s of %s", key.Str, arg, m.Name)
			return false
		}

		row[f.Name], err = parseValue(f, v)

		return err == nil
	})
	if err != nil {
		return nil, err
	}

	return row, nil
}

func parseValue(f Field, v gjson.Result) (any, error) {
	switch {
	case f.Kind == kindOptionalString && v.Type == gjson.Null:
		return nil, nil
	case (f.Kind == kindString || f.Kind == kindOptionalString) && v.Type == gjson.String:
		return v.Str, nil
	case f.Kind == kindBool && (v.Type == gjson.True || v.Type == gjson.False):
		return v.Bool(), nil
	case f.Kind == kindTime && (v.Type == gjson.String || v.Type == gjson.Number):
		// RFC 3339, date only and unix seconds are accepted, zone-less values are UTC.
		t, err := cast.ToTimeInDefaultLocationE(timeInput(v), time.UTC)
		if err != nil {
			return nil, invalidRequest("field %q expects an RFC 3339 datetime", f.Name)
		}

		return t.UTC(), nil
	default:
		return nil, invalidRequest("field %q expects %s", f.Name, f.Kind)
	}
}

// timeInput passes unix seconds to cast as an integer, whether sent as a number or a digit string.
func timeInput(v gjson.Result) any {
	if v.Type == gjson.Number {
		return v.Int()
	}

	if secs, err := strconv.ParseInt(v.Str, 10, 64); err == nil {
		return secs
	}

	return v.Str
}

// parseOrderBy accepts {"field":"asc"} or a list of such objects.
func parseOrderBy(m *Model, value gjson.Result) ([]order, error) {
	var items []gjson.Result

	switch {
	case value.Type == gjson.Null:
		return nil, nil
	case value.IsArray():
		items = value.Array()
	case value.IsObject():
		items = []gjson.Result{value}
	default:
		return nil, invalidRequest("orderBy must be an object or an array")
	}

	var (
		orders []order
		err    error
	)

	for _, item := range items {
		if !item.IsObject() {
			return nil, invalidRequest("orderBy entries must be objects")
		}

		item.ForEach(func(key, dir gjson.Result) bool {
			f, ok := m.field(key.Str)
			if !ok {
				err = invalidRequest("unknown field %q in orderBy of %s", key.Str, m.Name)
				return false
			}

			switch dir.String() {
			case "asc":
				orders = append(orders, order{Field: f})
			case "desc":
				orders = append(orders, order{Field: f, Desc: true})
			default:
				err = invalidRequest("orderBy direction of %q must be asc or desc", key.Str)
			}

			return err == nil
		})
		if err != nil {
			return nil, err
		}
	}

	return orders, nil
}

func parseCount(arg string, value gjson.Result) (*int, error) {
	if value.Type == gjson.Null {
		return nil, nil
	}

	if value.Type != gjson.Number || value.Num != float64(int64(value.Num)) || value.Num < 0 {
		return nil, invalidRequest("%s must be a non-negative integer", arg)
	}

	n := int(value.Int())

	return &n, nil
}
