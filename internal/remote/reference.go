package remote

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var ErrInvalidReference = errors.New("invalid scripture reference")

// book (with an optional leading ordinal), chapter, optional verse and range end
var referencePattern = regexp.MustCompile(`^\s*((?:[1-3]\s*)?[A-Za-z][A-Za-z .']*?)\s+(\d+)(?:\s*:\s*(\d+)(?:\s*-\s*(\d+))?)?\s*$`)

// Reference is a scripture location such as "John 3:16" or "1 John 1:5-7".
// Verse is zero for a whole chapter.
type Reference struct {
	Book     string
	Chapter  int
	Verse    int
	EndVerse int
}

func ParseReference(s string) (Reference, error) {
	m := referencePattern.FindStringSubmatch(s)
	if m == nil {
		return Reference{}, fmt.Errorf("%w: %q", ErrInvalidReference, s)
	}

	ref := Reference{Book: normalizeBook(m[1])}
	ref.Chapter, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		ref.Verse, _ = strconv.Atoi(m[3])
	}
	if m[4] != "" {
		ref.EndVerse, _ = strconv.Atoi(m[4])
	}

	if ref.Chapter < 1 || (m[3] != "" && ref.Verse < 1) {
		return Reference{}, fmt.Errorf("%w: %q", ErrInvalidReference, s)
	}
	if ref.EndVerse != 0 && ref.EndVerse <= ref.Verse {
		ref.EndVerse = 0
	}
	return ref, nil
}

// normalizeBook collapses inner whitespace so "1  John" and "1John" match.
func normalizeBook(book string) string {
	book = strings.Join(strings.Fields(book), " ")
	if len(book) > 1 && book[0] >= '1' && book[0] <= '3' && book[1] != ' ' {
		book = book[:1] + " " + book[1:]
	}
	return book
}

func (r Reference) String() string {
	switch {
	case r.Verse == 0:
		return fmt.Sprintf("%s %d", r.Book, r.Chapter)
	case r.EndVerse > r.Verse:
		return fmt.Sprintf("%s %d:%d-%d", r.Book, r.Chapter, r.Verse, r.EndVerse)
	default:
		return fmt.Sprintf("%s %d:%d", r.Book, r.Chapter, r.Verse)
	}
}

// Next steps to the verse after the current one (or after the end of a
// range). Chapter lengths are unknown here, so it never rolls over into the
// next chapter; a whole-chapter reference steps to the next chapter.
func (r Reference) Next() Reference {
	if r.Verse == 0 {
		return Reference{Book: r.Book, Chapter: r.Chapter + 1}
	}
	last := r.Verse
	if r.EndVerse > last {
		last = r.EndVerse
	}
	return Reference{Book: r.Book, Chapter: r.Chapter, Verse: last + 1}
}

// Prev steps to the verse before the start of the reference, never below 1.
func (r Reference) Prev() Reference {
	if r.Verse == 0 {
		return Reference{Book: r.Book, Chapter: max(r.Chapter-1, 1)}
	}
	return Reference{Book: r.Book, Chapter: r.Chapter, Verse: max(r.Verse-1, 1)}
}
