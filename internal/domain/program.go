package domain

type Program struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
	Route       string `json:"route"`
}

var programs = []Program{
	{ID: "drawing", Title: "Drawing", Description: "Draw anything you like!", Icon: "🎨", Color: "#FFB703", Route: "/programs/drawing"},
	{ID: "tracing", Title: "Letter tracing", Description: "Trace the letters along the lines!", Icon: "✏️", Color: "#8ECAE6", Route: "/programs/tracing"},
	{ID: "puzzle", Title: "Puzzles", Description: "Put the fun puzzles together!", Icon: "🧩", Color: "#FB8500", Route: "/programs/puzzle"},
	{ID: "quiz", Title: "Quiz time", Description: "Solve some fun quizzes!", Icon: "❓", Color: "#90BE6D", Route: "/programs/quiz"},
	{ID: "music", Title: "Music play", Description: "Play along with music!", Icon: "🎵", Color: "#E76F51", Route: "/programs/music"},
	{ID: "story", Title: "Story time", Description: "Read a fun fairy tale!", Icon: "📚", Color: "#9B59B6", Route: "/programs/story"},
}

// Programs returns a copy of the fixed program catalog in display order.
func Programs() []Program {
	out := make([]Program, len(programs))
	copy(out, programs)
	return out
}

func FindProgram(id string) (Program, bool) {
	for _, p := range programs {
		if p.ID == id {
			return p, true
		}
	}
	return Program{}, false
}
