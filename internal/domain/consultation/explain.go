package consultation

import "strings"

// explanations is a static plain-language reference shown beside a model
// suggestion, keyed by lower-cased diagnosis name. It is advisory text for
// the consulting doctor, not part of the medical record.
var explanations = map[string]string{
	"influenza":                   "Viral respiratory infection with fever, body aches and cough; usually self-limiting within a week.",
	"common cold":                 "Mild viral upper respiratory infection; supportive care, fluids and rest.",
	"acute bronchitis":            "Inflammation of the bronchial tubes, typically viral; cough may persist for weeks.",
	"pneumonia":                   "Lung infection with fever, productive cough and shortness of breath; may need antibiotics and chest imaging.",
	"hypertension":                "Persistently elevated blood pressure; confirm with repeat readings before starting treatment.",
	"type 2 diabetes":             "Chronic elevated blood sugar from insulin resistance; confirm with fasting glucose or HbA1c.",
	"urinary tract infection":     "Bacterial infection of the urinary tract with painful, frequent urination; urinalysis confirms.",
	"gastroenteritis":             "Stomach and intestinal inflammation with diarrhea and vomiting; main risk is dehydration.",
	"dengue fever":                "Mosquito-borne viral illness with high fever, headache and muscle pain; watch platelet count and warning signs.",
	"tuberculosis":                "Chronic bacterial lung infection with prolonged cough, night sweats and weight loss; needs sputum testing and a full treatment course.",
	"asthma":                      "Reversible airway narrowing with wheezing and shortness of breath, often triggered by allergens or exertion.",
	"migraine":                    "Recurrent moderate-to-severe headache, often one-sided, with nausea or light sensitivity.",
	"tension headache":            "Mild-to-moderate band-like headache associated with stress or posture; responds to simple analgesia.",
	"allergic rhinitis":           "Nasal inflammation from allergen exposure with sneezing and watery discharge; antihistamines help.",
	"anemia":                      "Low hemoglobin causing fatigue and pallor; check a complete blood count and look for the underlying cause.",
	"acute pharyngitis":           "Sore throat, usually viral; consider a strep test when fever and exudates are present.",
	"otitis media":                "Middle ear infection, common after a cold; ear pain and fever, may need antibiotics in children.",
	"skin infection (cellulitis)": "Spreading bacterial skin infection with warmth, redness and tenderness; oral antibiotics, mark the border.",
}

// Explain returns the reference text for a diagnosis name, or "" when none
// is on file. Lookup is by name only; probabilities never enter into it.
func Explain(name string) string {
	return explanations[strings.ToLower(strings.TrimSpace(name))]
}
