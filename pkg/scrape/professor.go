package scrape

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// Professor is one harvested row. Field order is the CSV column order.
type Professor struct {
	ProfessorId       int     `db:"professor_id" csv:"ProfessorId"`
	Fname             string  `db:"fname" csv:"Fname"`
	Lname             string  `db:"lname" csv:"Lname"`
	School            string  `db:"school" csv:"School"`
	Department        string  `db:"department" csv:"Department"`
	OverallQuality    string  `db:"overall_quality" csv:"OverallQuality"`
	WouldTakeAgain    string  `db:"would_take_again" csv:"WouldTakeAgain"`
	LevelOfDifficulty string  `db:"level_of_difficulty" csv:"LevelOfDifficulty"`
	Tags              TagList `db:"tags" csv:"Tags"`
	Hotness           string  `db:"hotness" csv:"-"`
}

// TagList is stored as a single semicolon-joined column.
type TagList []string

const tagSep = ";"

func (t TagList) String() string {
	return strings.Join(t, tagSep)
}

func (t TagList) MarshalCSV() (string, error) {
	return t.String(), nil
}

func (t *TagList) UnmarshalCSV(s string) error {
	*t = splitTags(s)
	return nil
}

func (t TagList) Value() (driver.Value, error) {
	return t.String(), nil
}

func (t *TagList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*t = nil
	case string:
		*t = splitTags(v)
	case []byte:
		*t = splitTags(string(v))
	default:
		return fmt.Errorf("cannot scan %T into TagList", src)
	}
	return nil
}

func splitTags(s string) TagList {
	if s == "" {
		return nil
	}
	return strings.Split(s, tagSep)
}

// ProfessorPage scrapes the ratings page of a single tid into Professor.
type ProfessorPage struct {
	Tid         int
	UrlTemplate string
	Professor   Professor
}

func (p *ProfessorPage) Urls() []string {
	template := p.UrlTemplate
	if template == "" {
		template = DefaultUrl
	}
	return []string{fmt.Sprintf(template, p.Tid)}
}

func (p *ProfessorPage) UnmarshalDoc(doc *goquery.Document) error {
	prof, err := UnmarshalProfessor(doc, p.Tid)
	if err != nil {
		return err
	}
	p.Professor = prof
	return nil
}

// UnmarshalProfessor extracts a Professor from a ratings page. Fields are
// taken by position (first match wins); a missing one fails with ErrParse.
func UnmarshalProfessor(doc *goquery.Document, tid int) (Professor, error) {
	first := func(field, selector string) (string, error) {
		text := ownText(doc.Find(selector).First())
		if text == "" {
			return "", eris.Wrapf(ErrParse, "tid %d: no %s", tid, field)
		}
		return text, nil
	}

	fname, err := first("first name", "h1.profname span.pfname")
	if err != nil {
		return Professor{}, err
	}
	lname, err := first("last name", "span.plname")
	if err != nil {
		return Professor{}, err
	}
	school, err := first("school", "a.school")
	if err != nil {
		return Professor{}, err
	}
	title, err := first("department", "div.result-title")
	if err != nil {
		return Professor{}, err
	}

	// Overall quality, would take again, level of difficulty
	grades := ownTexts(doc.Find("div.grade"))
	if len(grades) < 3 {
		return Professor{}, eris.Wrapf(ErrParse, "tid %d: found %d of 3 grades", tid, len(grades))
	}

	hotness, _ := doc.Find("div.breakdown-section div.grade figure img").First().Attr("src")

	return Professor{
		ProfessorId:       tid,
		Fname:             fname,
		Lname:             lname,
		School:            school,
		Department:        getDepartment(title),
		OverallQuality:    grades[0],
		WouldTakeAgain:    grades[1],
		LevelOfDifficulty: grades[2],
		Tags:              TagList(ownTexts(doc.Find("span.tag-box-choosetags"))),
		Hotness:           hotness,
	}, nil
}
