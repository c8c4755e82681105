package smells

import (
	"context"
	"fmt"

	"github.com/yevheniidehtiar/locust-love-django/internal/store"
)

// ProjectReport summarises one project for its stakeholders.
type ProjectReport struct {
	ProjectName string                `json:"project_name"`
	ProjectCode string                `json:"project_code"`
	Department  DepartmentInfo        `json:"department"`
	BudgetInfo  BudgetInfo            `json:"budget_info"`
	Timeline    Timeline              `json:"timeline"`
	Team        []TeamMember          `json:"team"`
	Tasks       map[string][]TaskInfo `json:"tasks"`
	Documents   []DocumentInfo        `json:"documents"`
}

type DepartmentInfo struct {
	Name          string `json:"name"`
	Code          string `json:"code"`
	Description   string `json:"description"`
	TotalProjects int    `json:"total_projects"`
}

type BudgetInfo struct {
	TotalBudget float64 `json:"total_budget"`
	TotalHours  int     `json:"total_hours"`
	CostPerHour float64 `json:"cost_per_hour"`
}

type Timeline struct {
	StartDate            store.Date `json:"start_date"`
	EndDate              store.Date `json:"end_date"`
	DaysElapsed          int        `json:"days_elapsed"`
	DaysRemaining        int        `json:"days_remaining"`
	CompletionPercentage float64    `json:"completion_percentage"`
}

type TeamMember struct {
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	Department     string   `json:"department"`
	Role           string   `json:"role"`
	HoursAllocated int      `json:"hours_allocated"`
	Manager        string   `json:"manager"`
	AssignedTasks  []string `json:"assigned_tasks"`
}

type TaskInfo struct {
	ID        int64         `json:"id"`
	Title     string        `json:"title"`
	Assignee  string        `json:"assignee"`
	Priority  string        `json:"priority"`
	DueDate   store.Date    `json:"due_date"`
	IsOverdue bool          `json:"is_overdue"`
	Subtasks  []SubtaskInfo `json:"subtasks,omitempty"`
}

type SubtaskInfo struct {
	Title    string `json:"title"`
	Status   string `json:"status"`
	Assignee string `json:"assignee"`
}

type DocumentInfo struct {
	Title      string          `json:"title"`
	FileType   string          `json:"file_type"`
	UploadDate store.Timestamp `json:"upload_date"`
	Uploader   string          `json:"uploader"`
	Size       string          `json:"size"`
}

const noManager = "No Manager"

func budgetInfo(p store.Project, totalHours int) BudgetInfo {
	b := BudgetInfo{TotalBudget: p.Budget, TotalHours: totalHours}
	if totalHours > 0 {
		b.CostPerHour = p.Budget / float64(totalHours)
	}
	return b
}

func timeline(p store.Project, today store.Date, total, done int) Timeline {
	t := Timeline{StartDate: p.StartDate, EndDate: p.EndDate, CompletionPercentage: percent(done, total)}
	if p.StartDate.Before(today) {
		t.DaysElapsed = p.StartDate.DaysUntil(today)
	}
	if today.Before(p.EndDate) {
		t.DaysRemaining = today.DaysUntil(p.EndDate)
	}
	return t
}

func emptyTaskSummary() map[string][]TaskInfo {
	out := make(map[string][]TaskInfo, len(store.TaskStatuses))
	for _, st := range store.TaskStatuses {
		out[st] = []TaskInfo{}
	}
	return out
}

func sizeLabel(n int64) string {
	return fmt.Sprintf("%d bytes", n)
}

// ProjectReportNaive builds the report through small helpers that each
// fetch what they need, so every related row costs its own statement.
func (s *Smells) ProjectReportNaive(ctx context.Context, code string) (ProjectReport, error) {
	p, err := s.store.GetProjectByCode(ctx, code)
	if err != nil {
		return ProjectReport{}, err
	}
	r := ProjectReport{ProjectName: p.Name, ProjectCode: p.Code}
	if r.Department, err = s.departmentInfo(ctx, p); err != nil {
		return r, err
	}
	if r.BudgetInfo, err = s.budgetInfo(ctx, p); err != nil {
		return r, err
	}
	if r.Timeline, err = s.timelineInfo(ctx, p); err != nil {
		return r, err
	}
	if r.Team, err = s.teamInfo(ctx, p); err != nil {
		return r, err
	}
	if r.Tasks, err = s.taskSummary(ctx, p); err != nil {
		return r, err
	}
	r.Documents, err = s.documentInfo(ctx, p)
	return r, err
}

func (s *Smells) departmentInfo(ctx context.Context, p store.Project) (DepartmentInfo, error) {
	d, err := s.store.GetDepartment(ctx, p.DepartmentID)
	if err != nil {
		return DepartmentInfo{}, err
	}
	n, err := s.store.CountProjectsByDepartment(ctx, d.ID)
	if err != nil {
		return DepartmentInfo{}, err
	}
	return DepartmentInfo{Name: d.Name, Code: d.Code, Description: d.Description, TotalProjects: n}, nil
}

func (s *Smells) budgetInfo(ctx context.Context, p store.Project) (BudgetInfo, error) {
	assignments, err := s.store.AssignmentsByProject(ctx, p.ID)
	if err != nil {
		return BudgetInfo{}, err
	}
	hours := 0
	for _, a := range assignments {
		hours += a.HoursAllocated
	}
	return budgetInfo(p, hours), nil
}

func (s *Smells) timelineInfo(ctx context.Context, p store.Project) (Timeline, error) {
	tasks, err := s.store.TasksByProject(ctx, p.ID)
	if err != nil {
		return Timeline{}, err
	}
	done := 0
	for _, t := range tasks {
		if t.Status == store.StatusDone {
			done++
		}
	}
	return timeline(p, s.Today(), len(tasks), done), nil
}

func (s *Smells) teamInfo(ctx context.Context, p store.Project) ([]TeamMember, error) {
	assignments, err := s.store.AssignmentsByProject(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	team := make([]TeamMember, 0, len(assignments))
	for _, a := range assignments {
		emp, err := s.store.GetEmployee(ctx, a.EmployeeID)
		if err != nil {
			return nil, err
		}
		dept, err := s.store.GetDepartment(ctx, emp.DepartmentID)
		if err != nil {
			return nil, err
		}
		manager := noManager
		if emp.ManagerID != nil {
			m, err := s.store.GetEmployee(ctx, *emp.ManagerID)
			if err != nil {
				return nil, err
			}
			manager = m.FullName()
		}
		tasks, err := s.store.TasksByProjectAndAssignee(ctx, p.ID, emp.ID)
		if err != nil {
			return nil, err
		}
		titles := make([]string, 0, len(tasks))
		for _, t := range tasks {
			titles = append(titles, t.Title)
		}
		team = append(team, TeamMember{
			Name:           emp.FullName(),
			Email:          emp.Email,
			Department:     dept.Name,
			Role:           a.Role,
			HoursAllocated: a.HoursAllocated,
			Manager:        manager,
			AssignedTasks:  titles,
		})
	}
	return team, nil
}

func (s *Smells) taskSummary(ctx context.Context, p store.Project) (map[string][]TaskInfo, error) {
	tasks, err := s.store.TasksByProject(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	today := s.Today()
	summary := emptyTaskSummary()
	for _, t := range tasks {
		assignee, err := s.store.GetEmployee(ctx, t.AssignedToID)
		if err != nil {
			return nil, err
		}
		info := TaskInfo{
			ID:        t.ID,
			Title:     t.Title,
			Assignee:  assignee.FullName(),
			Priority:  t.Priority,
			DueDate:   t.DueDate,
			IsOverdue: t.IsOverdue(today),
		}
		has, err := s.store.HasSubtasks(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		if has {
			subs, err := s.store.SubtasksOf(ctx, t.ID)
			if err != nil {
				return nil, err
			}
			for _, sub := range subs {
				owner, err := s.store.GetEmployee(ctx, sub.AssignedToID)
				if err != nil {
					return nil, err
				}
				info.Subtasks = append(info.Subtasks, SubtaskInfo{Title: sub.Title, Status: sub.Status, Assignee: owner.FullName()})
			}
		}
		summary[t.Status] = append(summary[t.Status], info)
	}
	return summary, nil
}

func (s *Smells) documentInfo(ctx context.Context, p store.Project) ([]DocumentInfo, error) {
	docs, err := s.store.DocumentsByProject(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	out := make([]DocumentInfo, 0, len(docs))
	for _, d := range docs {
		uploader, err := s.store.GetEmployee(ctx, d.UploadedByID)
		if err != nil {
			return nil, err
		}
		out = append(out, DocumentInfo{
			Title:      d.Title,
			FileType:   d.FileType,
			UploadDate: d.UploadDate,
			Uploader:   uploader.FullName(),
			Size:       sizeLabel(int64(len(d.Content))),
		})
	}
	return out, nil
}

// ProjectReportOptimized builds the same report from five joined
// statements regardless of team or task count.
func (s *Smells) ProjectReportOptimized(ctx context.Context, code string) (ProjectReport, error) {
	o, err := s.store.GetProjectOverview(ctx, code)
	if err != nil {
		return ProjectReport{}, err
	}
	p, d := o.Project, o.Department
	r := ProjectReport{
		ProjectName: p.Name,
		ProjectCode: p.Code,
		Department:  DepartmentInfo{Name: d.Name, Code: d.Code, Description: d.Description, TotalProjects: o.DepartmentProjectCount},
		BudgetInfo:  budgetInfo(p, o.TotalHours),
		Tasks:       emptyTaskSummary(),
	}

	tasks, err := s.store.TaskRowsForProject(ctx, p.ID)
	if err != nil {
		return r, err
	}
	ids := make([]int64, len(tasks))
	titlesByAssignee := make(map[int64][]string)
	done := 0
	for i, t := range tasks {
		ids[i] = t.Task.ID
		titlesByAssignee[t.Task.AssignedToID] = append(titlesByAssignee[t.Task.AssignedToID], t.Task.Title)
		if t.Task.Status == store.StatusDone {
			done++
		}
	}
	today := s.Today()
	r.Timeline = timeline(p, today, len(tasks), done)

	subtasks, err := s.store.SubtaskRowsFor(ctx, ids)
	if err != nil {
		return r, err
	}
	for _, t := range tasks {
		info := TaskInfo{
			ID:        t.Task.ID,
			Title:     t.Task.Title,
			Assignee:  t.AssigneeName,
			Priority:  t.Task.Priority,
			DueDate:   t.Task.DueDate,
			IsOverdue: t.Task.IsOverdue(today),
		}
		for _, sub := range subtasks[t.Task.ID] {
			info.Subtasks = append(info.Subtasks, SubtaskInfo{Title: sub.Task.Title, Status: sub.Task.Status, Assignee: sub.AssigneeName})
		}
		r.Tasks[t.Task.Status] = append(r.Tasks[t.Task.Status], info)
	}

	team, err := s.store.TeamForProject(ctx, p.ID)
	if err != nil {
		return r, err
	}
	r.Team = make([]TeamMember, 0, len(team))
	for _, row := range team {
		manager := row.ManagerName
		if manager == "" {
			manager = noManager
		}
		titles := titlesByAssignee[row.Employee.ID]
		if titles == nil {
			titles = []string{}
		}
		r.Team = append(r.Team, TeamMember{
			Name:           row.Employee.FullName(),
			Email:          row.Employee.Email,
			Department:     row.DepartmentName,
			Role:           row.Assignment.Role,
			HoursAllocated: row.Assignment.HoursAllocated,
			Manager:        manager,
			AssignedTasks:  titles,
		})
	}

	docs, err := s.store.DocumentSummariesForProject(ctx, p.ID)
	if err != nil {
		return r, err
	}
	r.Documents = make([]DocumentInfo, 0, len(docs))
	for _, doc := range docs {
		r.Documents = append(r.Documents, DocumentInfo{
			Title:      doc.Title,
			FileType:   doc.FileType,
			UploadDate: doc.UploadDate,
			Uploader:   doc.Uploader,
			Size:       sizeLabel(doc.Size),
		})
	}
	return r, nil
}

// DefaultProjectCode picks the project the endpoint reports on when the
// request names none.
func (s *Smells) DefaultProjectCode(ctx context.Context) (string, error) {
	return s.store.FirstProjectCode(ctx)
}
