package termwindow

import (
	"strconv"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/justyntemme/vst3gui/pkg/editor"
)

// csiKeys maps the CSI sequences a terminal sends for special keys.
var csiKeys = map[string]tea.KeyType{
	"A":  tea.KeyUp,
	"B":  tea.KeyDown,
	"C":  tea.KeyRight,
	"D":  tea.KeyLeft,
	"H":  tea.KeyHome,
	"F":  tea.KeyEnd,
	"Z":  tea.KeyShiftTab,
	"2~": tea.KeyInsert,
	"3~": tea.KeyDelete,
	"5~": tea.KeyPgUp,
	"6~": tea.KeyPgDown,
}

// decode turns raw terminal input into editor events. An escape sequence cut
// off at the end of buf is reported as a plain escape key.
func decode(buf []byte) []editor.Event {
	var out []editor.Event
	for len(buf) > 0 {
		ev, n := decodeOne(buf)
		buf = buf[n:]
		if ev != nil {
			out = append(out, *ev)
		}
	}
	return out
}

func keyEvent(k tea.Key) *editor.Event {
	return &editor.Event{Kind: editor.EventKey, Key: k}
}

func decodeOne(buf []byte) (*editor.Event, int) {
	b := buf[0]
	switch {
	case b == 0x1b:
		return decodeEscape(buf)
	case b == ' ':
		return keyEvent(tea.Key{Type: tea.KeySpace, Runes: []rune{' '}}), 1
	case b < 0x20 || b == 0x7f:
		// Control characters share their codes with tea's key types.
		return keyEvent(tea.Key{Type: tea.KeyType(b)}), 1
	}

	r, n := utf8.DecodeRune(buf)
	if r == utf8.RuneError {
		return nil, n
	}
	return keyEvent(tea.Key{Type: tea.KeyRunes, Runes: []rune{r}}), n
}

func decodeEscape(buf []byte) (*editor.Event, int) {
	if len(buf) == 1 {
		return keyEvent(tea.Key{Type: tea.KeyEsc}), 1
	}
	if buf[1] != '[' && buf[1] != 'O' {
		// ESC followed by a key is that key with alt held.
		ev, n := decodeOne(buf[1:])
		if ev == nil || ev.Kind != editor.EventKey {
			return keyEvent(tea.Key{Type: tea.KeyEsc}), 1
		}
		ev.Key.Alt = true
		return ev, n + 1
	}
	if len(buf) > 2 && buf[1] == '[' && buf[2] == '<' {
		if ev, n, ok := decodeSGRMouse(buf); ok {
			return ev, n
		}
	}

	// Parameters and intermediates run up to the final byte 0x40-0x7e.
	for i := 2; i < len(buf); i++ {
		c := buf[i]
		if c >= 0x40 && c <= 0x7e {
			if k, ok := csiKeys[string(buf[2:i+1])]; ok {
				return keyEvent(tea.Key{Type: k}), i + 1
			}
			return nil, i + 1
		}
	}
	return keyEvent(tea.Key{Type: tea.KeyEsc}), 1
}

// decodeSGRMouse parses an SGR mouse report: ESC [ < b ; x ; y (M|m).
func decodeSGRMouse(buf []byte) (*editor.Event, int, bool) {
	var fields [3]int
	field, start := 0, 3
	for i := 3; i < len(buf); i++ {
		c := buf[i]
		switch {
		case c >= '0' && c <= '9':
			continue
		case c == ';' && field < 2:
			v, err := strconv.Atoi(string(buf[start:i]))
			if err != nil {
				return nil, 0, false
			}
			fields[field] = v
			field++
			start = i + 1
		case (c == 'M' || c == 'm') && field == 2:
			v, err := strconv.Atoi(string(buf[start:i]))
			if err != nil {
				return nil, 0, false
			}
			fields[2] = v
			return &editor.Event{Kind: editor.EventMouse, Mouse: mouseEvent(fields, c == 'm')}, i + 1, true
		default:
			return nil, 0, false
		}
	}
	return nil, 0, false
}

func mouseEvent(f [3]int, release bool) tea.MouseEvent {
	code := f[0]
	ev := tea.MouseEvent{
		X:     f[1] - 1,
		Y:     f[2] - 1,
		Shift: code&4 != 0,
		Alt:   code&8 != 0,
		Ctrl:  code&16 != 0,
	}

	switch {
	case code&64 != 0:
		ev.Button = tea.MouseButtonWheelUp + tea.MouseButton(code&3)
	default:
		ev.Button = tea.MouseButtonLeft + tea.MouseButton(code&3)
		if code&3 == 3 {
			ev.Button = tea.MouseButtonNone
		}
	}

	switch {
	case code&32 != 0:
		ev.Action = tea.MouseActionMotion
	case release:
		ev.Action = tea.MouseActionRelease
	default:
		ev.Action = tea.MouseActionPress
	}
	return ev
}
