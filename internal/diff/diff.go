// Пакет diff — пословное сравнение содержимого полей политики.
// Результат — список токенов для отрисовки изменений в редакторе ревизий.
// Токены сохраняются в change_metadata как JSON и больше нигде не
// интерпретируются: бизнес-логика ревизий на diff не опирается.
package diff

import (
	"encoding/json"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op — тип токена diff.
type Op string

const (
	OpEqual  Op = "equal"
	OpInsert Op = "insert"
	OpDelete Op = "delete"
)

// Token — непрерывный фрагмент текста с типом изменения.
type Token struct {
	Op   Op     `json:"op"`
	Text string `json:"text"`
}

// Words вычисляет пословный diff между original и modified.
// Посимвольный diff огрубляется до границ слов через семантическую очистку,
// смежные фрагменты одного типа склеиваются.
func Words(original, modified string) []Token {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(original, modified, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	tokens := make([]Token, 0, len(diffs))
	for _, d := range diffs {
		var op Op
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = OpInsert
		case diffmatchpatch.DiffDelete:
			op = OpDelete
		default:
			op = OpEqual
		}

		// Склеиваем с предыдущим токеном того же типа
		if n := len(tokens); n > 0 && tokens[n-1].Op == op {
			tokens[n-1].Text += d.Text
			continue
		}
		tokens = append(tokens, Token{Op: op, Text: d.Text})
	}

	return tokens
}

// Metadata сериализует пословный diff в JSON для хранения в change_metadata.
func Metadata(original, modified string) ([]byte, error) {
	return json.Marshal(Words(original, modified))
}

// Summary возвращает короткую текстовую сводку изменений: количество
// вставленных и удалённых слов. Используется в логах.
func Summary(tokens []Token) (inserted, deleted int) {
	for _, tok := range tokens {
		n := len(strings.Fields(tok.Text))
		switch tok.Op {
		case OpInsert:
			inserted += n
		case OpDelete:
			deleted += n
		}
	}
	return inserted, deleted
}
