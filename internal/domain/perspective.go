package domain

// Perspective is one of the six fixed, independent reply-generation
// strategies, each emphasizing a different response style.
type Perspective string

const (
	PerspectiveWhite  Perspective = "white"
	PerspectiveBlack  Perspective = "black"
	PerspectiveBlue   Perspective = "blue"
	PerspectiveRed    Perspective = "red"
	PerspectiveYellow Perspective = "yellow"
	PerspectiveGreen  Perspective = "green"
)

// Perspectives returns all perspectives in the canonical reply order used
// for all-perspectives dispatch.
func Perspectives() []Perspective {
	return []Perspective{
		PerspectiveWhite,
		PerspectiveBlack,
		PerspectiveBlue,
		PerspectiveRed,
		PerspectiveYellow,
		PerspectiveGreen,
	}
}

// Valid reports whether p is one of the six known perspectives.
func (p Perspective) Valid() bool {
	switch p {
	case PerspectiveWhite, PerspectiveBlack, PerspectiveBlue,
		PerspectiveRed, PerspectiveYellow, PerspectiveGreen:
		return true
	}
	return false
}

// Directive is the routing instruction parsed from a leading @token in user
// input: none, one of the six perspectives, or an external agent.
type Directive string

const (
	DirectiveNone  Directive = ""
	DirectiveImage Directive = "image"
	DirectiveVideo Directive = "video"
)

// Recognized reports whether d names a known routing target.
func (d Directive) Recognized() bool {
	if d == DirectiveImage || d == DirectiveVideo {
		return true
	}
	return Perspective(d).Valid()
}

// AsPerspective returns the perspective named by the directive, if any.
func (d Directive) AsPerspective() (Perspective, bool) {
	p := Perspective(d)
	return p, p.Valid()
}
