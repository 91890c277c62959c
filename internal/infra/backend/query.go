package backend

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
)

// Params はクエリ文字列として送るオプション名と値の組
type Params map[string]any

// optionalValue は mo.Option など「値が無い」状態を持つ型を判定するためのインターフェース
type optionalValue interface {
	IsAbsent() bool
}

// EncodeQuery は Params をクエリ文字列に変換する
// nil・空文字列・値の無い Option は出力しない。出力が無い場合は空文字列を返す
func EncodeQuery(params Params) string {
	values := url.Values{}
	for key, raw := range params {
		value, ok := stringify(raw)
		if !ok {
			continue
		}
		values.Set(key, value)
	}

	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

// MergeParams は複数のパラメータグループを1つにまとめる
// キーが衝突した場合は後のグループの値が優先される
func MergeParams(groups ...Params) Params {
	merged := Params{}
	for _, group := range groups {
		for key, value := range group {
			merged[key] = value
		}
	}
	return merged
}

func stringify(raw any) (string, bool) {
	if raw == nil {
		return "", false
	}

	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		return stringify(rv.Elem().Interface())
	}

	if opt, ok := raw.(optionalValue); ok {
		if opt.IsAbsent() {
			return "", false
		}
		// mo.Option[T] は型パラメータごとに別型なので OrEmpty をリフレクションで呼ぶ
		if method := rv.MethodByName("OrEmpty"); method.IsValid() && method.Type().NumIn() == 0 {
			return stringify(method.Call(nil)[0].Interface())
		}
	}

	switch v := raw.(type) {
	case string:
		return v, v != ""
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), true
	case fmt.Stringer:
		s := v.String()
		return s, s != ""
	}

	s := fmt.Sprint(raw)
	return s, s != ""
}
