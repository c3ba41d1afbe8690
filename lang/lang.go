package lang

import (
	"bytes"
	"fmt"

	"github.com/gertd/go-pluralize"
)

const (
	DefaultPattern   = "%s"
	DefaultSeparator = ","
	DefaultOperator  = "and"
)

var (
	client = pluralize.NewClient()
)

func Plural(word string) string {
	return client.Plural(word)
}

func Singular(word string) string {
	return client.Singular(word)
}

// Card renders a count with a matching noun form, e.g. "no routes",
// "1 route", "12 routes".
func Card(count int, word string) string {
	switch count {
	case 0:
		return fmt.Sprintf("no %s", Plural(word))
	case 1:
		return fmt.Sprintf("1 %s", Singular(word))
	}
	return fmt.Sprintf("%d %s", count, Plural(word))
}

type Enumerator struct {
	Pattern   string
	Separator string
	Operator  string
}

func (e Enumerator) Do(elements ...string) string {
	pattern, separator, operator := DefaultPattern, DefaultSeparator, DefaultOperator
	if e.Pattern != "" {
		pattern = e.Pattern
	}
	if e.Separator != "" {
		separator = e.Separator
	}
	if e.Operator != "" {
		operator = e.Operator
	}
	res := &bytes.Buffer{}
	for idx, element := range elements {
		fmt.Fprintf(res, pattern, element)
		switch {
		case idx+2 < len(elements):
			fmt.Fprintf(res, "%s ", separator)
		case idx+2 == len(elements) && len(elements) > 2:
			fmt.Fprintf(res, "%s %s ", separator, operator)
		case idx+2 == len(elements):
			fmt.Fprintf(res, " %s ", operator)
		}
	}
	return res.String()
}
