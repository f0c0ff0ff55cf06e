// Package countries holds the static country reference list offered by the
// city form. The list is read-only; stores never check against it.
package countries

import "strings"

var names = []string{
	"Afghanistan", "Albania", "Algeria", "Andorra", "Angola", "Argentina",
	"Armenia", "Australia", "Austria", "Azerbaijan", "Bahrain", "Bangladesh",
	"Belarus", "Belgium", "Benin", "Bolivia", "Bosnia and Herzegovina",
	"Botswana", "Brazil", "Bulgaria", "Burkina Faso", "Cambodia", "Cameroon",
	"Canada", "Chad", "Chile", "China", "Colombia", "Costa Rica", "Croatia",
	"Cuba", "Cyprus", "Czech Republic", "Denmark", "Dominican Republic",
	"Ecuador", "Egypt", "Estonia", "Ethiopia", "Finland", "France", "Gabon",
	"Georgia", "Germany", "Ghana", "Greece", "Guatemala", "Guinea", "Haiti",
	"Honduras", "Hungary", "Iceland", "India", "Indonesia", "Iran", "Iraq",
	"Ireland", "Israel", "Italy", "Ivory Coast", "Jamaica", "Japan", "Jordan",
	"Kazakhstan", "Kenya", "Kuwait", "Latvia", "Lebanon", "Libya",
	"Lithuania", "Luxembourg", "Madagascar", "Malaysia", "Mali", "Malta",
	"Mauritania", "Mexico", "Moldova", "Monaco", "Mongolia", "Montenegro",
	"Morocco", "Mozambique", "Nepal", "Netherlands", "New Zealand",
	"Nicaragua", "Niger", "Nigeria", "North Macedonia", "Norway", "Oman",
	"Pakistan", "Panama", "Paraguay", "Peru", "Philippines", "Poland",
	"Portugal", "Qatar", "Romania", "Russia", "Rwanda", "Saudi Arabia",
	"Senegal", "Serbia", "Singapore", "Slovakia", "Slovenia", "South Africa",
	"South Korea", "Spain", "Sri Lanka", "Sudan", "Sweden", "Switzerland",
	"Syria", "Taiwan", "Tanzania", "Thailand", "Togo", "Tunisia", "Turkey",
	"Uganda", "Ukraine", "United Arab Emirates", "United Kingdom",
	"United States", "Uruguay", "Uzbekistan", "Venezuela", "Vietnam", "Yemen",
	"Zambia", "Zimbabwe",
}

var index = func() map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}()

// All returns a copy of the list in display order
func All() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Contains reports whether name is on the list
// Surrounding whitespace is ignored; case must match.
func Contains(name string) bool {
	_, ok := index[strings.TrimSpace(name)]
	return ok
}
