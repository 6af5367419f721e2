package platformtest

import "fmt"

// SampleCourse has two chapters with 2 and 3 video lectures plus one lab that must be ignored.
func SampleCourse() Course {
	video := func(id string) []byte { return []byte(fmt.Sprintf("mp4-bytes-of-%s", id)) }

	return Course{
		ID:    "101",
		Slug:  "docker-basics",
		Title: "Docker Basics",
		Modules: []Module{
			{
				ID:    "m1",
				Title: "Introduction",
				Lessons: []Lesson{
					{ID: "l1", Title: "Welcome", Video: video("l1")},
					{ID: "l2", Title: "What is a container?", Video: video("l2")},
				},
			},
			{
				ID:    "m2",
				Title: "Images & Layers",
				Lessons: []Lesson{
					{ID: "l3", Title: "Layers", Video: video("l3")},
					{ID: "lab1", Title: "Hands-on lab", Type: "lab"},
					{ID: "l4", Title: "Build cache", Video: video("l4")},
					{ID: "l5", Title: "Multi-stage builds", Video: video("l5")},
				},
			},
		},
	}
}

// SampleQuizzes returns three quizzes in listing order.
func SampleQuizzes() []Quiz {
	return []Quiz{
		{
			ID: "q1", Name: "Docker Basics", Topic: "docker",
			Questions: []Question{
				{Question: "Which command lists running containers?", Answers: []string{"docker ps", "docker ls"}, Correct: []string{"docker ps"}},
			},
		},
		{
			ID: "q2", Name: "Kubernetes Pods", Topic: "kubernetes",
			Questions: []Question{
				{Question: "What is the smallest deployable unit?", Answers: []string{"Pod", "Node"}, Correct: []string{"Pod"}, Explanation: "Pods wrap one or more containers."},
			},
		},
		{
			ID: "q3", Name: "Linux Permissions", Topic: "linux",
			Questions: []Question{
				{Question: "Which mode grants rwx to the owner only?", Answers: []string{"700", "777"}, Correct: []string{"700"}},
			},
		},
	}
}
