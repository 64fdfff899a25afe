// Package password implementa la política de passwords y el hashing argon2id.
package password

import (
	"fmt"
	"strings"
	"unicode"
)

// DefaultSpecialChars es el set de símbolos aceptado cuando la política
// no define uno propio.
const DefaultSpecialChars = "!@#$%^&*()_+-=[]{}|;:,.<>?"

// Requirements es la política configurable contra la que se evalúa un
// password candidato. Se construye desde config y se pasa por valor:
// el engine es puro y no guarda estado.
type Requirements struct {
	MinLength          int
	MaxLength          int // 0 = sin límite
	ComplexityRequired bool
	RequireUpper       bool
	RequireLower       bool
	RequireDigit       bool
	RequireSymbol      bool
	AllowedSymbols     string
	// PreventIdentity prohíbe que el username o la parte local del email
	// aparezcan dentro del password (case-insensitive, fragmentos >= 3).
	PreventIdentity bool
}

// Hints son los fragmentos de identidad del usuario, usados solo cuando
// PreventIdentity está activo.
type Hints struct {
	Username string
	Email    string
}

// Evaluation es el veredicto: lista ordenada de violaciones (vacía = válido)
// y un score de fuerza 0..5. El score se calcula siempre, incluso cuando la
// validación falla, para alimentar el medidor de la UI.
type Evaluation struct {
	Errors   []string
	Strength int
}

// Valid reporta si el password pasó todas las reglas.
func (e Evaluation) Valid() bool { return len(e.Errors) == 0 }

// Evaluate corre todas las reglas de la política sobre el candidato.
// Determinístico y sin efectos: cada chequeo es independiente, el orden
// solo afecta el orden de los mensajes.
func Evaluate(req Requirements, candidate string, hints Hints) Evaluation {
	var ev Evaluation

	runes := []rune(candidate)
	if len(runes) < req.MinLength {
		ev.Errors = append(ev.Errors, fmt.Sprintf("must be at least %d characters long", req.MinLength))
	}
	if req.MaxLength > 0 && len(runes) > req.MaxLength {
		ev.Errors = append(ev.Errors, fmt.Sprintf("must be at most %d characters long", req.MaxLength))
	}

	if req.ComplexityRequired {
		hasU, hasL, hasD := scanClasses(candidate)
		if req.RequireUpper && !hasU {
			ev.Errors = append(ev.Errors, "must contain an uppercase letter")
		}
		if req.RequireLower && !hasL {
			ev.Errors = append(ev.Errors, "must contain a lowercase letter")
		}
		if req.RequireDigit && !hasD {
			ev.Errors = append(ev.Errors, "must contain a number")
		}
		if req.RequireSymbol && !containsAny(candidate, req.symbols()) {
			ev.Errors = append(ev.Errors, "must contain a special character")
		}
	}

	if req.PreventIdentity {
		lower := strings.ToLower(candidate)
		for _, frag := range identityFragments(hints) {
			if strings.Contains(lower, frag) {
				ev.Errors = append(ev.Errors, "must not contain your username or email")
				break
			}
		}
	}

	ev.Strength = Strength(candidate)
	return ev
}

// Strength calcula el score 0..5:
// largo (>=8, >=12), una unidad por clase de caracter presente, y un bonus
// por passphrases largas (>=16) que ya cubren las cuatro clases.
func Strength(candidate string) int {
	runes := []rune(candidate)

	score := 0
	if len(runes) >= 8 {
		score++
	}
	if len(runes) >= 12 {
		score++
	}

	classes := 0
	var hasU, hasL, hasD, hasOther bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			hasU = true
		case unicode.IsLower(r):
			hasL = true
		case unicode.IsDigit(r):
			hasD = true
		default:
			hasOther = true
		}
	}
	for _, b := range []bool{hasU, hasL, hasD, hasOther} {
		if b {
			classes++
		}
	}
	score += classes

	if len(runes) >= 16 && classes >= 4 {
		score++
	}

	if score > 5 {
		score = 5
	}
	return score
}

func (r Requirements) symbols() string {
	if r.AllowedSymbols != "" {
		return r.AllowedSymbols
	}
	return DefaultSpecialChars
}

func scanClasses(s string) (hasUpper, hasLower, hasDigit bool) {
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return
}

func containsAny(s, set string) bool {
	return strings.ContainsAny(s, set)
}

// identityFragments retorna los fragmentos prohibidos: username y la parte
// local del email, en minúsculas, descartando fragmentos de menos de 3
// caracteres (generarían falsos positivos constantes).
func identityFragments(h Hints) []string {
	var out []string
	if u := strings.ToLower(strings.TrimSpace(h.Username)); len(u) >= 3 {
		out = append(out, u)
	}
	if e := strings.ToLower(strings.TrimSpace(h.Email)); e != "" {
		local := e
		if i := strings.Index(e, "@"); i >= 0 {
			local = e[:i]
		}
		if len(local) >= 3 {
			out = append(out, local)
		}
	}
	return out
}
