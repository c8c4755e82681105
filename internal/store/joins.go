package store

import (
	"context"
	"database/sql"
)

// ProjectOverview is a project joined with its department and the number of
// projects that department owns.
type ProjectOverview struct {
	Project                Project
	Department             Department
	DepartmentProjectCount int
	TotalHours             int
}

// GetProjectOverview replaces four separate lookups with one statement.
func (s *Store) GetProjectOverview(ctx context.Context, code string) (ProjectOverview, error) {
	var o ProjectOverview
	p, d := &o.Project, &o.Department
	err := s.queryRow(ctx, `SELECT p.id, p.name, p.code, p.description, p.start_date, p.end_date, p.budget, p.department_id,
			d.id, d.name, d.code, d.description,
			(SELECT COUNT(*) FROM projects dp WHERE dp.department_id = d.id),
			(SELECT COALESCE(SUM(pa.hours_allocated), 0) FROM project_assignments pa WHERE pa.project_id = p.id)
		FROM projects p JOIN departments d ON d.id = p.department_id
		WHERE p.code = $1`, code).Scan(
		&p.ID, &p.Name, &p.Code, &p.Description, &p.StartDate, &p.EndDate, &p.Budget, &p.DepartmentID,
		&d.ID, &d.Name, &d.Code, &d.Description,
		&o.DepartmentProjectCount, &o.TotalHours)
	return o, notFound(err)
}

// TeamRow is an assignment joined with the employee, their department and manager.
type TeamRow struct {
	Assignment     ProjectAssignment
	Employee       Employee
	DepartmentName string
	ManagerName    string
}

// TeamForProject loads a project's staffing in one statement.
func (s *Store) TeamForProject(ctx context.Context, projectID int64) ([]TeamRow, error) {
	rows, err := s.query(ctx, `SELECT pa.id, pa.project_id, pa.employee_id, pa.role, pa.assignment_date, pa.hours_allocated,
			e.id, e.first_name, e.last_name, e.email, e.department_id, e.manager_id, e.hire_date, e.salary,
			d.name, m.first_name, m.last_name
		FROM project_assignments pa
		JOIN employees e ON e.id = pa.employee_id
		JOIN departments d ON d.id = e.department_id
		LEFT JOIN employees m ON m.id = e.manager_id
		WHERE pa.project_id = $1
		ORDER BY pa.id`, projectID)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(sc scanner) (TeamRow, error) {
		var r TeamRow
		var mFirst, mLast sql.NullString
		a, e := &r.Assignment, &r.Employee
		err := sc.Scan(&a.ID, &a.ProjectID, &a.EmployeeID, &a.Role, &a.AssignmentDate, &a.HoursAllocated,
			&e.ID, &e.FirstName, &e.LastName, &e.Email, &e.DepartmentID, &e.ManagerID, &e.HireDate, &e.Salary,
			&r.DepartmentName, &mFirst, &mLast)
		if mFirst.Valid {
			r.ManagerName = mFirst.String + " " + mLast.String
		}
		return r, err
	})
}

// TaskRow is a task joined with its assignee's name.
type TaskRow struct {
	Task         Task
	AssigneeName string
}

const taskRowSelect = `SELECT t.id, t.title, t.description, t.project_id, t.assigned_to_id, t.created_by_id,
		t.parent_task_id, t.priority, t.status, t.created_date, t.due_date, t.estimated_hours,
		e.first_name, e.last_name
	FROM tasks t JOIN employees e ON e.id = t.assigned_to_id`

func scanTaskRow(sc scanner) (TaskRow, error) {
	var r TaskRow
	var first, last string
	t := &r.Task
	err := sc.Scan(&t.ID, &t.Title, &t.Description, &t.ProjectID, &t.AssignedToID, &t.CreatedByID,
		&t.ParentTaskID, &t.Priority, &t.Status, &t.CreatedDate, &t.DueDate, &t.EstimatedHours,
		&first, &last)
	r.AssigneeName = first + " " + last
	return r, err
}

// TaskRowsForProject loads a project's tasks with assignee names.
func (s *Store) TaskRowsForProject(ctx context.Context, projectID int64) ([]TaskRow, error) {
	rows, err := s.query(ctx, taskRowSelect+" WHERE t.project_id = $1 ORDER BY t.id", projectID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTaskRow)
}

// SubtaskRowsFor prefetches the children of many tasks, keyed by parent id.
func (s *Store) SubtaskRowsFor(ctx context.Context, parentIDs []int64) (map[int64][]TaskRow, error) {
	out := make(map[int64][]TaskRow)
	if len(parentIDs) == 0 {
		return out, nil
	}
	rows, err := s.query(ctx, taskRowSelect+" WHERE t.parent_task_id IN ("+placeholders(1, len(parentIDs))+") ORDER BY t.id",
		int64Args(parentIDs)...)
	if err != nil {
		return nil, err
	}
	subs, err := collect(rows, scanTaskRow)
	if err != nil {
		return nil, err
	}
	for _, r := range subs {
		if r.Task.ParentTaskID != nil {
			out[*r.Task.ParentTaskID] = append(out[*r.Task.ParentTaskID], r)
		}
	}
	return out, nil
}

// DocumentSummary describes a document without loading its content.
type DocumentSummary struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	FileType   string    `json:"file_type"`
	UploadDate Timestamp `json:"upload_date"`
	Uploader   string    `json:"uploader"`
	Size       int64     `json:"size"`
}

// DocumentSummariesForProject lets the database measure content size.
func (s *Store) DocumentSummariesForProject(ctx context.Context, projectID int64) ([]DocumentSummary, error) {
	rows, err := s.query(ctx, `SELECT d.id, d.title, d.file_type, d.upload_date, e.first_name, e.last_name,
			COALESCE(LENGTH(d.content), 0)
		FROM documents d JOIN employees e ON e.id = d.uploaded_by_id
		WHERE d.project_id = $1
		ORDER BY d.id`, projectID)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(sc scanner) (DocumentSummary, error) {
		var ds DocumentSummary
		var first, last string
		err := sc.Scan(&ds.ID, &ds.Title, &ds.FileType, &ds.UploadDate, &first, &last, &ds.Size)
		ds.Uploader = first + " " + last
		return ds, err
	})
}

// ListDocuments loads every column of every document, content included.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.query(ctx, `SELECT id, title, project_id, uploaded_by_id, upload_date, file_type, content, description
		FROM documents ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanFullDocument)
}

// ListDocumentsDeferContent loads every column except content.
func (s *Store) ListDocumentsDeferContent(ctx context.Context) ([]Document, error) {
	rows, err := s.query(ctx, `SELECT id, title, project_id, uploaded_by_id, upload_date, file_type, description
		FROM documents ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(sc scanner) (Document, error) {
		var d Document
		err := sc.Scan(&d.ID, &d.Title, &d.ProjectID, &d.UploadedByID, &d.UploadDate, &d.FileType, &d.Description)
		return d, err
	})
}

// ListDocumentTitles loads only id and title.
func (s *Store) ListDocumentTitles(ctx context.Context) ([]Document, error) {
	rows, err := s.query(ctx, "SELECT id, title FROM documents ORDER BY id")
	if err != nil {
		return nil, err
	}
	return collect(rows, func(sc scanner) (Document, error) {
		var d Document
		err := sc.Scan(&d.ID, &d.Title)
		return d, err
	})
}
