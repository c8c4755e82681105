// Package seed fills the demo database.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yevheniidehtiar/locust-love-django/internal/store"
)

// Counts sizes the generated data set.
type Counts struct {
	Authors             int
	BooksPerAuthor      int
	Products            int
	Departments         int
	EmployeesPerDept    int
	ProjectsPerDept     int
	TasksPerProject     int
	DocumentsPerProject int
	DocumentBytes       int
}

// DefaultCounts is large enough for the profiler to flag every pattern.
var DefaultCounts = Counts{
	Authors:             20,
	BooksPerAuthor:      5,
	Products:            2000,
	Departments:         3,
	EmployeesPerDept:    6,
	ProjectsPerDept:     3,
	TasksPerProject:     9,
	DocumentsPerProject: 3,
	DocumentBytes:       64 << 10,
}

// Options controls generation. Dates are laid out relative to Today so the
// department analysis window always contains tasks.
type Options struct {
	Counts Counts
	Today  store.Date
	Seed   int64
}

// Summary reports what was inserted.
type Summary struct {
	Authors     int `json:"authors"`
	Books       int `json:"books"`
	Products    int `json:"products"`
	Departments int `json:"departments"`
	Employees   int `json:"employees"`
	Projects    int `json:"projects"`
	Assignments int `json:"assignments"`
	Documents   int `json:"documents"`
	Tasks       int `json:"tasks"`
}

var (
	firstNames  = []string{"Ada", "Grace", "Alan", "Edsger", "Barbara", "Donald", "Margaret", "Ken", "Frances", "Dennis"}
	lastNames   = []string{"Lovelace", "Hopper", "Turing", "Dijkstra", "Liskov", "Knuth", "Hamilton", "Thompson", "Allen", "Ritchie"}
	bookWords   = []string{"Shadow", "River", "Empire", "Garden", "Signal", "Winter", "Harbor", "Machine", "Silence", "Orbit"}
	skuPrefixes = []string{"ABC", "ABD", "KLM", "QRS", "XYZ"}
	deptNames   = []string{"Engineering", "Marketing", "Finance", "Operations", "Research"}
	roles       = []string{"Lead", "Developer", "Analyst", "Reviewer"}
	fileTypes   = []string{"pdf", "docx", "xlsx"}
	priorities  = []string{store.PriorityLow, store.PriorityMedium, store.PriorityHigh, store.PriorityCritical}
)

// Generate inserts a deterministic data set. Books, each product table and
// the organisation are independent and are written concurrently.
func Generate(ctx context.Context, st *store.Store, opts Options) (Summary, error) {
	if !opts.Today.Valid {
		opts.Today = store.DateOf(time.Now().UTC())
	}
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	c := opts.Counts
	var sum Summary
	var books, org Summary
	var plain, indexed int

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		books, err = generateBooks(ctx, st, c, rand.New(rand.NewSource(opts.Seed)))
		return err
	})
	g.Go(func() error {
		var err error
		plain, err = generateProducts(ctx, st, store.Products, c.Products)
		return err
	})
	g.Go(func() error {
		var err error
		indexed, err = generateProducts(ctx, st, store.IndexedProducts, c.Products)
		return err
	})
	g.Go(func() error {
		var err error
		org, err = generateOrg(ctx, st, c, opts.Today, rand.New(rand.NewSource(opts.Seed+1)))
		return err
	})
	if err := g.Wait(); err != nil {
		return sum, err
	}
	sum = org
	sum.Authors, sum.Books = books.Authors, books.Books
	sum.Products = plain + indexed
	return sum, nil
}

func generateBooks(ctx context.Context, st *store.Store, c Counts, rng *rand.Rand) (Summary, error) {
	var sum Summary
	for i := 0; i < c.Authors; i++ {
		name := fmt.Sprintf("%s %s", firstNames[i%len(firstNames)], lastNames[(i/len(firstNames)+i)%len(lastNames)])
		a, err := st.CreateAuthor(ctx, name)
		if err != nil {
			return sum, err
		}
		sum.Authors++
		for j := 0; j < c.BooksPerAuthor; j++ {
			title := fmt.Sprintf("The %s of %s", bookWords[(i+j)%len(bookWords)], bookWords[rng.Intn(len(bookWords))])
			if _, err := st.CreateBook(ctx, store.Book{Title: title, AuthorID: a.ID, PublicationYear: 1900 + rng.Intn(124)}); err != nil {
				return sum, err
			}
			sum.Books++
		}
	}
	return sum, nil
}

func generateProducts(ctx context.Context, st *store.Store, table store.ProductTable, n int) (int, error) {
	for i := 0; i < n; i++ {
		sku := fmt.Sprintf("%s-%06d", skuPrefixes[i%len(skuPrefixes)], i)
		p := store.Product{
			Name:        "Product " + sku,
			SKU:         sku,
			Price:       float64(100+i%900) / 10,
			Description: "Generated product " + sku,
		}
		if _, err := st.CreateProduct(ctx, table, p); err != nil {
			return i, err
		}
	}
	return n, nil
}

func generateOrg(ctx context.Context, st *store.Store, c Counts, today store.Date, rng *rand.Rand) (Summary, error) {
	var sum Summary
	for d := 0; d < c.Departments; d++ {
		name := deptNames[d%len(deptNames)]
		code := fmt.Sprintf("%s%d", name[:3], d+1)
		dept, err := st.CreateDepartment(ctx, store.Department{Name: name, Code: code, Description: name + " department"})
		if err != nil {
			return sum, err
		}
		sum.Departments++

		var staff []store.Employee
		for e := 0; e < c.EmployeesPerDept; e++ {
			emp := store.Employee{
				FirstName:    firstNames[(d+e)%len(firstNames)],
				LastName:     lastNames[(d*3+e)%len(lastNames)],
				Email:        fmt.Sprintf("emp%d.%d@example.com", d+1, e+1),
				DepartmentID: dept.ID,
				HireDate:     today.AddDays(-365 - rng.Intn(2000)),
				Salary:       float64(50000 + rng.Intn(70000)),
			}
			if len(staff) > 0 {
				emp.ManagerID = &staff[0].ID
			}
			if emp, err = st.CreateEmployee(ctx, emp); err != nil {
				return sum, err
			}
			staff = append(staff, emp)
			sum.Employees++
		}
		if len(staff) == 0 {
			continue
		}

		for p := 0; p < c.ProjectsPerDept; p++ {
			proj := store.Project{
				Name:         fmt.Sprintf("%s Initiative %d", name, p+1),
				Code:         fmt.Sprintf("%s-P%02d", code, p+1),
				Description:  "Generated project",
				StartDate:    today.AddDays(-180 + p*30),
				Budget:       float64(100000 + p*50000),
				DepartmentID: dept.ID,
			}
			// one open-ended, one finished, the rest running
			switch p % 3 {
			case 1:
				proj.EndDate = today.AddDays(-10)
			case 2:
				proj.EndDate = today.AddDays(120)
			}
			if proj, err = st.CreateProject(ctx, proj); err != nil {
				return sum, err
			}
			sum.Projects++

			team := staff
			if len(team) > len(roles) {
				team = team[:len(roles)]
			}
			for i, emp := range team {
				_, err := st.CreateAssignment(ctx, store.ProjectAssignment{
					ProjectID:      proj.ID,
					EmployeeID:     emp.ID,
					Role:           roles[i%len(roles)],
					AssignmentDate: proj.StartDate,
					HoursAllocated: 40 + rng.Intn(200),
				})
				if err != nil {
					return sum, err
				}
				sum.Assignments++
			}

			for i := 0; i < c.DocumentsPerProject; i++ {
				_, err := st.CreateDocument(ctx, store.Document{
					Title:        fmt.Sprintf("%s spec %d", proj.Code, i+1),
					ProjectID:    proj.ID,
					UploadedByID: team[i%len(team)].ID,
					UploadDate:   store.NewTimestamp(today.AddDays(-i).Time.Add(9 * time.Hour)),
					FileType:     fileTypes[i%len(fileTypes)],
					Content:      blob(rng, c.DocumentBytes),
					Description:  "Generated document",
				})
				if err != nil {
					return sum, err
				}
				sum.Documents++
			}

			n, err := generateTasks(ctx, st, c.TasksPerProject, proj, team, today, rng)
			sum.Tasks += n
			if err != nil {
				return sum, err
			}
		}
	}
	return sum, nil
}

func generateTasks(ctx context.Context, st *store.Store, n int, proj store.Project, team []store.Employee, today store.Date, rng *rand.Rand) (int, error) {
	created := 0
	for i := 0; i < n; i++ {
		t := store.Task{
			Title:          fmt.Sprintf("%s task %d", proj.Code, i+1),
			Description:    "Generated task",
			ProjectID:      proj.ID,
			AssignedToID:   team[i%len(team)].ID,
			CreatedByID:    team[0].ID,
			Priority:       priorities[rng.Intn(len(priorities))],
			Status:         store.TaskStatuses[i%len(store.TaskStatuses)],
			CreatedDate:    store.NewTimestamp(today.AddDays(-rng.Intn(60)).Time.Add(10 * time.Hour)),
			DueDate:        today.AddDays(rng.Intn(40) - 20),
			EstimatedHours: 1 + rng.Intn(16),
		}
		parent, err := st.CreateTask(ctx, t)
		if err != nil {
			return created, err
		}
		created++
		if i%3 != 0 {
			continue
		}
		for k := 0; k < 2; k++ {
			sub := t
			sub.Title = fmt.Sprintf("%s subtask %d", t.Title, k+1)
			sub.ParentTaskID = &parent.ID
			sub.AssignedToID = team[(i+k+1)%len(team)].ID
			sub.Status = store.StatusTodo
			if _, err := st.CreateTask(ctx, sub); err != nil {
				return created, err
			}
			created++
		}
	}
	return created, nil
}

func blob(rng *rand.Rand, n int) []byte {
	if n <= 0 {
		return nil
	}
	b := make([]byte, n)
	rng.Read(b)
	return b
}
