package models

// Subject is a fixed exam-topic category. Subjects are not persisted on their
// own; the identifier partitions chat_history.
type Subject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// Subjects is the fixed KMLE subject catalog.
var Subjects = []Subject{
	{ID: "cardiology", Name: "순환기 (Cardiology)", Icon: "💖"},
	{ID: "pulmonology", Name: "호흡기 (Pulmonology)", Icon: "🌬️"},
	{ID: "gastroenterology", Name: "소화기 (Gastroenterology)", Icon: "🍩"},
	{ID: "hepatobiliary", Name: "간담췌 (Hepatobiliary)", Icon: "🍺"},
	{ID: "nephrology", Name: "신장 (Nephrology)", Icon: "💧"},
	{ID: "endocrinology", Name: "내분비 (Endocrinology)", Icon: "🍬"},
	{ID: "hemato-oncology", Name: "혈액종양 (Hemato-Oncology)", Icon: "🩸"},
	{ID: "infectious-diseases", Name: "감염 (Infectious Diseases)", Icon: "🦠"},
	{ID: "rheumatology-allergy", Name: "류마티스/알레르기", Icon: "🦴"},
	{ID: "pediatrics", Name: "소아청소년과 (Pediatrics)", Icon: "🧸"},
	{ID: "obstetrics", Name: "산과 (Obstetrics)", Icon: "🤰"},
	{ID: "gynecology", Name: "부인과 (Gynecology)", Icon: "🎀"},
	{ID: "psychiatry", Name: "정신건강의학과 (Psychiatry)", Icon: "🧩"},
	{ID: "preventive-medicine", Name: "예방의학 (Preventive Med)", Icon: "🛡️"},
	{ID: "general-surgery", Name: "외과 (General Surgery)", Icon: "🔪"},
	{ID: "minor-specialties", Name: "마이너 (안과/이비인후/피부)", Icon: "👁️"},
	{ID: "medical-law", Name: "의료법규 (Medical Law)", Icon: "⚖️"},
}

// DefaultSubject is the selection a fresh session starts on.
func DefaultSubject() Subject {
	return Subjects[0]
}

// SubjectByID looks up a subject in the catalog.
func SubjectByID(id string) (Subject, bool) {
	for _, s := range Subjects {
		if s.ID == id {
			return s, true
		}
	}
	return Subject{}, false
}
