package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

func smells(m dsl.Matcher) {
	// Dos "guard if" seguidos con el mismo return => combinables con ||
	m.Match(`if $c1 { return $ret }; if $c2 { return $ret }`).
		Report(`two consecutive guards return the same value; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { return $ret }`)

	m.Match(`if $c1 { continue }; if $c2 { continue }`).
		Report(`two consecutive continues; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { continue }`)

	// Contextos perdidos: errors sin %w pierden la cadena de causas
	m.Match(`fmt.Errorf($msg, $*_, $err)`).
		Where(m["err"].Type.Implements("error") && !m["msg"].Text.Matches(`%w`)).
		Report(`error formatted without %w; wrapping keeps errors.Is/As working`)
}
