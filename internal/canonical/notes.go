package canonical

import "regexp"

// Free-text notes classifier for housekeeping payloads whose type field is
// missing or unmapped. Order matters: refusal and DND language are more
// specific than generic request language.
var (
	dndStartRe = regexp.MustCompile(`(?i)\b(do[\s-]?not[\s-]?disturb|dnd)\b.{0,40}\b(on|start|started|active|activated|requested|placed)\b|\b(guest|room)\b.{0,30}\b(dnd|do[\s-]?not[\s-]?disturb)\b`)
	dndEndRe   = regexp.MustCompile(`(?i)\b(do[\s-]?not[\s-]?disturb|dnd)\b.{0,40}\b(off|end|ended|removed|lifted|cleared|cancelled|canceled)\b`)
	refusalRe  = regexp.MustCompile(`(?i)\b(refused|refusal|declined|denied|rejected|no\s+service|did\s+not\s+want)\b`)
	supplyRe   = regexp.MustCompile(`(?i)\b\d+\s*(towel|pillow|blanket|sheet|robe|roll|bottle|bar|soap|shampoo|amenit|water|cup|glass)`)
	requestRe  = regexp.MustCompile(`(?i)\b(please|request(ed)?|asking\s+for|asked\s+for|need(s|ed)?|wants?|would\s+like|bring|deliver)\b`)
)

// ClassifyNotes infers a canonical event type from free-text housekeeping
// notes. Returns "" when nothing matches.
func ClassifyNotes(notes string) string {
	if notes == "" {
		return ""
	}
	switch {
	case dndEndRe.MatchString(notes):
		return "DND_END"
	case dndStartRe.MatchString(notes):
		return "DND_START"
	case refusalRe.MatchString(notes):
		return "SERVICE_REFUSED"
	case supplyRe.MatchString(notes):
		return "SUPPLY_REQUEST"
	case requestRe.MatchString(notes):
		return "GUEST_REQUEST"
	default:
		return ""
	}
}
