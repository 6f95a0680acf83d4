package evaluator

import (
	"bytes"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/goodsign/monday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

func registerTextBuiltins() {
	registerBuiltin("upper", caseBuiltin("upper", cases.Upper))
	registerBuiltin("lower", caseBuiltin("lower", cases.Lower))
	registerBuiltin("title", caseBuiltin("title", cases.Title))
	registerBuiltin("format-number", builtinFormatNumber)
	registerBuiltin("split", builtinSplit)
	registerBuiltin("join", builtinJoin)
	registerBuiltin("trim", builtinTrim)
	registerBuiltin("markdown", builtinMarkdown)

	registerBuiltin("now", builtinNow)
	registerBuiltin("parse-date", builtinParseDate)
	registerBuiltin("format-date", builtinFormatDate)
}

// localeTag reads an optional locale argument, defaulting to en.
func localeTag(env *Environment, fn string, args []Object, pos int) (language.Tag, bool) {
	if len(args) <= pos {
		return language.English, true
	}
	tag, err := language.Parse(Text(args[pos]))
	if err != nil {
		newError(env, "EXT-0003", map[string]any{"Function": fn, "Input": Text(args[pos])})
		return language.Und, false
	}
	return tag, true
}

func caseBuiltin(name string, caser func(language.Tag, ...cases.Option) cases.Caser) BuiltinFunction {
	return func(env *Environment, args ...Object) Object {
		if len(args) < 1 || len(args) > 2 {
			return newArityErrorRange(env, name, len(args), 1, 2)
		}
		s, ok := args[0].(*String)
		if !ok {
			return newTypeError(env, name, "a String", args[0])
		}
		tag, ok := localeTag(env, name, args, 1)
		if !ok {
			return &Error{}
		}
		return &String{Value: caser(tag).String(s.Value)}
	}
}

func builtinFormatNumber(env *Environment, args ...Object) Object {
	if len(args) < 1 || len(args) > 2 {
		return newArityErrorRange(env, "format-number", len(args), 1, 2)
	}
	tag, ok := localeTag(env, "format-number", args, 1)
	if !ok {
		return &Error{}
	}
	p := message.NewPrinter(tag)
	switch n := args[0].(type) {
	case *Integer:
		return &String{Value: p.Sprintf("%v", number.Decimal(n.Value))}
	case *Float:
		return &String{Value: p.Sprintf("%v", number.Decimal(n.Value))}
	default:
		return newTypeError(env, "format-number", "a number", args[0])
	}
}

func builtinSplit(env *Environment, args ...Object) Object {
	if len(args) != 2 {
		return newArityError(env, "split", len(args), 2)
	}
	s, ok := args[0].(*String)
	if !ok {
		return newTypeError(env, "split", "a String", args[0])
	}
	parts := strings.Split(s.Value, Text(args[1]))
	out := make([]Object, len(parts))
	for i, p := range parts {
		out[i] = &String{Value: p}
	}
	return &List{Elements: out}
}

func builtinJoin(env *Environment, args ...Object) Object {
	if len(args) < 1 || len(args) > 2 {
		return newArityErrorRange(env, "join", len(args), 1, 2)
	}
	l, ok := listArg(env, "join", args[0])
	if !ok {
		return &Error{}
	}
	sep := ""
	if len(args) == 2 {
		sep = Text(args[1])
	}
	parts := make([]string, len(l.Elements))
	for i, e := range l.Elements {
		parts[i] = Text(e)
	}
	return &String{Value: strings.Join(parts, sep)}
}

func builtinTrim(env *Environment, args ...Object) Object {
	if len(args) != 1 {
		return newArityError(env, "trim", len(args), 1)
	}
	s, ok := args[0].(*String)
	if !ok {
		return newTypeError(env, "trim", "a String", args[0])
	}
	return &String{Value: strings.TrimSpace(s.Value)}
}

func builtinMarkdown(env *Environment, args ...Object) Object {
	if len(args) != 1 {
		return newArityError(env, "markdown", len(args), 1)
	}
	src, ok := args[0].(*String)
	if !ok {
		return newTypeError(env, "markdown", "a String", args[0])
	}
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert([]byte(src.Value), &buf); err != nil {
		return newError(env, "EXT-0002", map[string]any{"Function": "markdown", "Err": err.Error()})
	}
	return &String{Value: buf.String()}
}

func builtinNow(env *Environment, args ...Object) Object {
	if len(args) != 0 {
		return newArityError(env, "now", len(args), 0)
	}
	return &Integer{Value: time.Now().Unix()}
}

func builtinParseDate(env *Environment, args ...Object) Object {
	if len(args) != 1 {
		return newArityError(env, "parse-date", len(args), 1)
	}
	s, ok := args[0].(*String)
	if !ok {
		return newTypeError(env, "parse-date", "a String", args[0])
	}
	t, err := dateparse.ParseIn(strings.TrimSpace(s.Value), time.UTC)
	if err != nil {
		return newError(env, "EXT-0003", map[string]any{"Function": "parse-date", "Input": s.Value})
	}
	return &Integer{Value: t.Unix()}
}

// builtinFormatDate formats Unix seconds (UTC) with a Go layout, translating
// month and day names for the locale.
func builtinFormatDate(env *Environment, args ...Object) Object {
	if len(args) < 2 || len(args) > 3 {
		return newArityErrorRange(env, "format-date", len(args), 2, 3)
	}
	ts, ok := toInt(args[0])
	if !ok {
		return newTypeError(env, "format-date", "Unix seconds", args[0])
	}
	layout, ok := args[1].(*String)
	if !ok {
		return newTypeError(env, "format-date", "a String layout", args[1])
	}
	var locale monday.Locale = monday.LocaleEnUS
	if len(args) == 3 {
		locale = mondayLocale(Text(args[2]))
	}
	t := time.Unix(ts, 0).UTC()
	return &String{Value: monday.Format(t, layout.Value, locale)}
}

// mondayLocale maps a locale string to a monday.Locale for date formatting.
func mondayLocale(locale string) monday.Locale {
	locale = strings.ToLower(strings.ReplaceAll(locale, "-", "_"))

	localeMap := map[string]monday.Locale{
		"en":    monday.LocaleEnUS,
		"en_us": monday.LocaleEnUS,
		"en_gb": monday.LocaleEnGB,
		"de":    monday.LocaleDeDE,
		"de_de": monday.LocaleDeDE,
		"fr":    monday.LocaleFrFR,
		"fr_fr": monday.LocaleFrFR,
		"fr_ca": monday.LocaleFrCA,
		"es":    monday.LocaleEsES,
		"es_es": monday.LocaleEsES,
		"it":    monday.LocaleItIT,
		"pt":    monday.LocalePtPT,
		"pt_br": monday.LocalePtBR,
		"nl":    monday.LocaleNlNL,
		"ru":    monday.LocaleRuRU,
		"pl":    monday.LocalePlPL,
		"sv":    monday.LocaleSvSE,
		"ja":    monday.LocaleJaJP,
		"zh":    monday.LocaleZhCN,
		"ko":    monday.LocaleKoKR,
	}

	if l, ok := localeMap[locale]; ok {
		return l
	}
	if i := strings.IndexByte(locale, '_'); i > 0 {
		if l, ok := localeMap[locale[:i]]; ok {
			return l
		}
	}
	return monday.LocaleEnUS
}
