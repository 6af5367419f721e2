package domain

// Quiz is a set of question/answer pairs associated with a course topic.
type Quiz struct {
	ID        string
	Title     string
	Topic     string
	Questions []Question
}

// Question pairs the question text with its correct answer(s).
type Question struct {
	Text        string
	Choices     []string
	Answers     []string
	Code        string
	Explanation string
}

// IsAnswer reports whether choice is one of the correct answers.
func (q Question) IsAnswer(choice string) bool {
	for _, a := range q.Answers {
		if a == choice {
			return true
		}
	}
	return false
}
