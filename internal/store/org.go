package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	departmentColumns = "id, name, code, description"
	employeeColumns   = "id, first_name, last_name, email, department_id, manager_id, hire_date, salary"
	projectColumns    = "id, name, code, description, start_date, end_date, budget, department_id"
	assignmentColumns = "id, project_id, employee_id, role, assignment_date, hours_allocated"
	taskColumns       = "id, title, description, project_id, assigned_to_id, created_by_id, parent_task_id, priority, status, created_date, due_date, estimated_hours"
)

func scanDepartment(sc scanner) (Department, error) {
	var d Department
	err := sc.Scan(&d.ID, &d.Name, &d.Code, &d.Description)
	return d, err
}

func scanEmployee(sc scanner) (Employee, error) {
	var e Employee
	err := sc.Scan(&e.ID, &e.FirstName, &e.LastName, &e.Email, &e.DepartmentID, &e.ManagerID, &e.HireDate, &e.Salary)
	return e, err
}

func scanProject(sc scanner) (Project, error) {
	var p Project
	err := sc.Scan(&p.ID, &p.Name, &p.Code, &p.Description, &p.StartDate, &p.EndDate, &p.Budget, &p.DepartmentID)
	return p, err
}

func scanAssignment(sc scanner) (ProjectAssignment, error) {
	var a ProjectAssignment
	err := sc.Scan(&a.ID, &a.ProjectID, &a.EmployeeID, &a.Role, &a.AssignmentDate, &a.HoursAllocated)
	return a, err
}

func scanTask(sc scanner) (Task, error) {
	var t Task
	err := sc.Scan(&t.ID, &t.Title, &t.Description, &t.ProjectID, &t.AssignedToID, &t.CreatedByID,
		&t.ParentTaskID, &t.Priority, &t.Status, &t.CreatedDate, &t.DueDate, &t.EstimatedHours)
	return t, err
}

// CreateDepartment inserts a department.
func (s *Store) CreateDepartment(ctx context.Context, d Department) (Department, error) {
	id, err := s.insertID(ctx, "INSERT INTO departments (name, code, description) VALUES ($1, $2, $3)",
		d.Name, d.Code, d.Description)
	if err != nil {
		return Department{}, fmt.Errorf("create department: %w", err)
	}
	d.ID = id
	return d, nil
}

// CreateEmployee inserts an employee.
func (s *Store) CreateEmployee(ctx context.Context, e Employee) (Employee, error) {
	id, err := s.insertID(ctx, `INSERT INTO employees
		(first_name, last_name, email, department_id, manager_id, hire_date, salary)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.FirstName, e.LastName, e.Email, e.DepartmentID, e.ManagerID, e.HireDate, e.Salary)
	if err != nil {
		return Employee{}, fmt.Errorf("create employee: %w", err)
	}
	e.ID = id
	return e, nil
}

// CreateProject inserts a project.
func (s *Store) CreateProject(ctx context.Context, p Project) (Project, error) {
	id, err := s.insertID(ctx, `INSERT INTO projects
		(name, code, description, start_date, end_date, budget, department_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.Name, p.Code, p.Description, p.StartDate, p.EndDate, p.Budget, p.DepartmentID)
	if err != nil {
		return Project{}, fmt.Errorf("create project: %w", err)
	}
	p.ID = id
	return p, nil
}

// CreateAssignment staffs an employee on a project.
func (s *Store) CreateAssignment(ctx context.Context, a ProjectAssignment) (ProjectAssignment, error) {
	id, err := s.insertID(ctx, `INSERT INTO project_assignments
		(project_id, employee_id, role, assignment_date, hours_allocated)
		VALUES ($1, $2, $3, $4, $5)`,
		a.ProjectID, a.EmployeeID, a.Role, a.AssignmentDate, a.HoursAllocated)
	if err != nil {
		return ProjectAssignment{}, fmt.Errorf("create assignment: %w", err)
	}
	a.ID = id
	return a, nil
}

// CreateDocument inserts a document including its content.
func (s *Store) CreateDocument(ctx context.Context, d Document) (Document, error) {
	id, err := s.insertID(ctx, `INSERT INTO documents
		(title, project_id, uploaded_by_id, upload_date, file_type, content, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.Title, d.ProjectID, d.UploadedByID, d.UploadDate, d.FileType, d.Content, d.Description)
	if err != nil {
		return Document{}, fmt.Errorf("create document: %w", err)
	}
	d.ID = id
	return d, nil
}

// CreateTask inserts a task.
func (s *Store) CreateTask(ctx context.Context, t Task) (Task, error) {
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Status == "" {
		t.Status = StatusTodo
	}
	id, err := s.insertID(ctx, `INSERT INTO tasks
		(title, description, project_id, assigned_to_id, created_by_id, parent_task_id,
		 priority, status, created_date, due_date, estimated_hours)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.Title, t.Description, t.ProjectID, t.AssignedToID, t.CreatedByID, t.ParentTaskID,
		t.Priority, t.Status, t.CreatedDate, t.DueDate, t.EstimatedHours)
	if err != nil {
		return Task{}, fmt.Errorf("create task: %w", err)
	}
	t.ID = id
	return t, nil
}

// GetDepartment loads a department by id.
func (s *Store) GetDepartment(ctx context.Context, id int64) (Department, error) {
	d, err := scanDepartment(s.queryRow(ctx, "SELECT "+departmentColumns+" FROM departments WHERE id = $1", id))
	return d, notFound(err)
}

// GetDepartmentByCode loads a department by its unique code.
func (s *Store) GetDepartmentByCode(ctx context.Context, code string) (Department, error) {
	d, err := scanDepartment(s.queryRow(ctx, "SELECT "+departmentColumns+" FROM departments WHERE code = $1", code))
	return d, notFound(err)
}

// FirstDepartmentCode returns the code of the lowest-id department.
func (s *Store) FirstDepartmentCode(ctx context.Context) (string, error) {
	var code string
	err := s.queryRow(ctx, "SELECT code FROM departments ORDER BY id LIMIT 1").Scan(&code)
	return code, notFound(err)
}

// GetEmployee loads an employee by id.
func (s *Store) GetEmployee(ctx context.Context, id int64) (Employee, error) {
	e, err := scanEmployee(s.queryRow(ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = $1", id))
	return e, notFound(err)
}

// EmployeesByDepartment lists a department's employees.
func (s *Store) EmployeesByDepartment(ctx context.Context, departmentID int64) ([]Employee, error) {
	rows, err := s.query(ctx, "SELECT "+employeeColumns+" FROM employees WHERE department_id = $1 ORDER BY id", departmentID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanEmployee)
}

// CountEmployeesByDepartment counts a department's employees.
func (s *Store) CountEmployeesByDepartment(ctx context.Context, departmentID int64) (int, error) {
	var n int
	err := s.queryRow(ctx, "SELECT COUNT(*) FROM employees WHERE department_id = $1", departmentID).Scan(&n)
	return n, err
}

// GetProjectByCode loads a project by its unique code.
func (s *Store) GetProjectByCode(ctx context.Context, code string) (Project, error) {
	p, err := scanProject(s.queryRow(ctx, "SELECT "+projectColumns+" FROM projects WHERE code = $1", code))
	return p, notFound(err)
}

// FirstProjectCode returns the code of the lowest-id project.
func (s *Store) FirstProjectCode(ctx context.Context) (string, error) {
	var code string
	err := s.queryRow(ctx, "SELECT code FROM projects ORDER BY id LIMIT 1").Scan(&code)
	return code, notFound(err)
}

// ProjectsByDepartment lists a department's projects.
func (s *Store) ProjectsByDepartment(ctx context.Context, departmentID int64) ([]Project, error) {
	rows, err := s.query(ctx, "SELECT "+projectColumns+" FROM projects WHERE department_id = $1 ORDER BY id", departmentID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanProject)
}

// CountProjectsByDepartment counts a department's projects.
func (s *Store) CountProjectsByDepartment(ctx context.Context, departmentID int64) (int, error) {
	var n int
	err := s.queryRow(ctx, "SELECT COUNT(*) FROM projects WHERE department_id = $1", departmentID).Scan(&n)
	return n, err
}

// ProjectsForEmployeeOverlapping lists projects the employee is assigned to
// that overlap [from, to]. Projects without an end date never match, as a
// comparison against NULL is never true.
func (s *Store) ProjectsForEmployeeOverlapping(ctx context.Context, employeeID int64, from, to Date) ([]Project, error) {
	rows, err := s.query(ctx, `SELECT DISTINCT p.id, p.name, p.code, p.description, p.start_date, p.end_date, p.budget, p.department_id
		FROM projects p
		JOIN project_assignments pa ON pa.project_id = p.id
		WHERE pa.employee_id = $1 AND p.start_date <= $2 AND p.end_date >= $3
		ORDER BY p.id`, employeeID, to, from)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanProject)
}

// AssignmentsByProject lists a project's assignments.
func (s *Store) AssignmentsByProject(ctx context.Context, projectID int64) ([]ProjectAssignment, error) {
	rows, err := s.query(ctx, "SELECT "+assignmentColumns+" FROM project_assignments WHERE project_id = $1 ORDER BY id", projectID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAssignment)
}

// TasksByProject lists a project's tasks, subtasks included.
func (s *Store) TasksByProject(ctx context.Context, projectID int64) ([]Task, error) {
	rows, err := s.query(ctx, "SELECT "+taskColumns+" FROM tasks WHERE project_id = $1 ORDER BY id", projectID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTask)
}

// TasksByProjectAndAssignee lists the tasks one employee holds on a project.
func (s *Store) TasksByProjectAndAssignee(ctx context.Context, projectID, employeeID int64) ([]Task, error) {
	rows, err := s.query(ctx, "SELECT "+taskColumns+" FROM tasks WHERE project_id = $1 AND assigned_to_id = $2 ORDER BY id",
		projectID, employeeID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTask)
}

// createdWindow converts an inclusive day range into timestamp bounds.
func createdWindow(from, to Date) (Timestamp, Timestamp) {
	return NewTimestamp(from.Time), NewTimestamp(to.AddDays(1).Time)
}

// TasksByProjectCreatedBetween lists project tasks created on days in [from, to].
func (s *Store) TasksByProjectCreatedBetween(ctx context.Context, projectID int64, from, to Date) ([]Task, error) {
	lo, hi := createdWindow(from, to)
	rows, err := s.query(ctx, "SELECT "+taskColumns+" FROM tasks WHERE project_id = $1 AND created_date >= $2 AND created_date < $3 ORDER BY id",
		projectID, lo, hi)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTask)
}

// TasksByAssigneeCreatedBetween lists an employee's tasks created on days in [from, to].
func (s *Store) TasksByAssigneeCreatedBetween(ctx context.Context, employeeID int64, from, to Date) ([]Task, error) {
	lo, hi := createdWindow(from, to)
	rows, err := s.query(ctx, "SELECT "+taskColumns+" FROM tasks WHERE assigned_to_id = $1 AND created_date >= $2 AND created_date < $3 ORDER BY id",
		employeeID, lo, hi)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTask)
}

// HasSubtasks is the existence probe run before listing subtasks.
func (s *Store) HasSubtasks(ctx context.Context, taskID int64) (bool, error) {
	var one int
	err := s.queryRow(ctx, "SELECT 1 FROM tasks WHERE parent_task_id = $1 LIMIT 1", taskID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SubtasksOf lists the direct children of a task.
func (s *Store) SubtasksOf(ctx context.Context, taskID int64) ([]Task, error) {
	rows, err := s.query(ctx, "SELECT "+taskColumns+" FROM tasks WHERE parent_task_id = $1 ORDER BY id", taskID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTask)
}

// DocumentsByProject loads a project's documents with their content.
func (s *Store) DocumentsByProject(ctx context.Context, projectID int64) ([]Document, error) {
	rows, err := s.query(ctx, `SELECT id, title, project_id, uploaded_by_id, upload_date, file_type, content, description
		FROM documents WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanFullDocument)
}

func scanFullDocument(sc scanner) (Document, error) {
	var d Document
	err := sc.Scan(&d.ID, &d.Title, &d.ProjectID, &d.UploadedByID, &d.UploadDate, &d.FileType, &d.Content, &d.Description)
	return d, err
}
