package store

// Author writes books.
type Author struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Book belongs to one author.
type Book struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	AuthorID        int64  `json:"author"`
	PublicationYear int    `json:"publication_year"`
}

// BookWithAuthor is a book joined with its author's name.
type BookWithAuthor struct {
	Book
	AuthorName string `json:"author_name"`
}

// AuthorStats aggregates an author's catalogue.
type AuthorStats struct {
	AuthorID     int64   `json:"id"`
	Name         string  `json:"name"`
	BookCount    int     `json:"book_count"`
	EarliestYear int     `json:"earliest_year"`
	LatestYear   int     `json:"latest_year"`
	AverageYear  float64 `json:"average_year"`
}

// ProductTable picks which product table a lookup hits.
type ProductTable string

const (
	// Products has no index on sku.
	Products ProductTable = "products"
	// IndexedProducts carries an index on sku.
	IndexedProducts ProductTable = "indexed_products"
)

// Product is stored in both product tables with identical columns.
type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	SKU         string  `json:"sku"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
}

// Department is the root of the organisational model.
type Department struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Employee may report to a manager in any department.
type Employee struct {
	ID           int64   `json:"id"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	Email        string  `json:"email"`
	DepartmentID int64   `json:"department"`
	ManagerID    *int64  `json:"manager"`
	HireDate     Date    `json:"hire_date"`
	Salary       float64 `json:"salary"`
}

// FullName joins first and last name.
func (e Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}

// Project is owned by a department and staffed through assignments.
type Project struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Code         string  `json:"code"`
	Description  string  `json:"description"`
	StartDate    Date    `json:"start_date"`
	EndDate      Date    `json:"end_date"`
	Budget       float64 `json:"budget"`
	DepartmentID int64   `json:"department"`
}

// ProjectAssignment links an employee to a project in a role.
type ProjectAssignment struct {
	ID             int64  `json:"id"`
	ProjectID      int64  `json:"project"`
	EmployeeID     int64  `json:"employee"`
	Role           string `json:"role"`
	AssignmentDate Date   `json:"assignment_date"`
	HoursAllocated int    `json:"hours_allocated"`
}

// Document carries a potentially large binary payload.
type Document struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	ProjectID    int64     `json:"project"`
	UploadedByID int64     `json:"uploaded_by"`
	UploadDate   Timestamp `json:"upload_date"`
	FileType     string    `json:"file_type"`
	Content      []byte    `json:"-"`
	Description  string    `json:"description"`
}

// Task priorities.
const (
	PriorityLow      = "LOW"
	PriorityMedium   = "MEDIUM"
	PriorityHigh     = "HIGH"
	PriorityCritical = "CRITICAL"
)

// Task statuses.
const (
	StatusTodo       = "TODO"
	StatusInProgress = "IN_PROGRESS"
	StatusReview     = "REVIEW"
	StatusDone       = "DONE"
)

// TaskStatuses lists statuses in workflow order.
var TaskStatuses = []string{StatusTodo, StatusInProgress, StatusReview, StatusDone}

// Task is project work, optionally nested under a parent task.
type Task struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	ProjectID      int64     `json:"project"`
	AssignedToID   int64     `json:"assigned_to"`
	CreatedByID    int64     `json:"created_by"`
	ParentTaskID   *int64    `json:"parent_task"`
	Priority       string    `json:"priority"`
	Status         string    `json:"status"`
	CreatedDate    Timestamp `json:"created_date"`
	DueDate        Date      `json:"due_date"`
	EstimatedHours int       `json:"estimated_hours"`
}

// IsOverdue reports whether an unfinished task is past its due date.
func (t Task) IsOverdue(today Date) bool {
	return t.DueDate.Valid && t.Status != StatusDone && t.DueDate.Before(today)
}
