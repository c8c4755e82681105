package smells

import (
	"context"

	"github.com/yevheniidehtiar/locust-love-django/internal/store"
)

// DefaultAnalysisDays is the look-back window when no range is given.
const DefaultAnalysisDays = 90

// HoursPerYear converts salaries into an hourly cost.
const HoursPerYear = 2000

// DepartmentAnalysis is the department performance analysis.
type DepartmentAnalysis struct {
	Department     DepartmentSummary     `json:"department"`
	Projects       []ProjectAnalysis     `json:"projects"`
	Employees      []EmployeePerformance `json:"employees"`
	OverallMetrics OverallMetrics        `json:"overall_metrics"`
	StartDate      store.Date            `json:"start_date"`
	EndDate        store.Date            `json:"end_date"`
}

type DepartmentSummary struct {
	Name           string `json:"name"`
	Code           string `json:"code"`
	TotalProjects  int    `json:"total_projects"`
	ActiveProjects int    `json:"active_projects"`
}

type TaskMetrics struct {
	TotalTasks     int     `json:"total_tasks"`
	CompletedTasks int     `json:"completed_tasks"`
	CompletionRate float64 `json:"completion_rate"`
}

func taskMetrics(tasks []store.Task) TaskMetrics {
	done := 0
	for _, t := range tasks {
		if t.Status == store.StatusDone {
			done++
		}
	}
	return TaskMetrics{TotalTasks: len(tasks), CompletedTasks: done, CompletionRate: percent(done, len(tasks))}
}

type ProjectAnalysis struct {
	Name              string              `json:"name"`
	Code              string              `json:"code"`
	StartDate         store.Date          `json:"start_date"`
	EndDate           store.Date          `json:"end_date"`
	Budget            float64             `json:"budget"`
	TaskMetrics       TaskMetrics         `json:"task_metrics"`
	TeamPerformance   []MemberPerformance `json:"team_performance"`
	BudgetUtilization BudgetUtilization   `json:"budget_utilization"`
}

type MemberPerformance struct {
	Employee       string  `json:"employee"`
	Role           string  `json:"role"`
	TotalTasks     int     `json:"total_tasks"`
	CompletedTasks int     `json:"completed_tasks"`
	CompletionRate float64 `json:"completion_rate"`
	OverdueTasks   int     `json:"overdue_tasks"`
}

type EmployeeCost struct {
	Employee string  `json:"employee"`
	Hours    int     `json:"hours"`
	Cost     float64 `json:"cost"`
}

type BudgetUtilization struct {
	TotalBudget           float64        `json:"total_budget"`
	TotalCost             float64        `json:"total_cost"`
	UtilizationPercentage float64        `json:"utilization_percentage"`
	EmployeeCosts         []EmployeeCost `json:"employee_costs"`
}

type EmployeePerformance struct {
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	Manager     string      `json:"manager"`
	Projects    []string    `json:"projects"`
	TaskMetrics TaskMetrics `json:"task_metrics"`
}

type OverallMetrics struct {
	TotalTasks          int     `json:"total_tasks"`
	CompletedTasks      int     `json:"completed_tasks"`
	CompletionRate      float64 `json:"completion_rate"`
	TotalBudget         float64 `json:"total_budget"`
	TotalEmployees      int     `json:"total_employees"`
	AvgTasksPerEmployee float64 `json:"avg_tasks_per_employee"`
}

// DefaultDepartmentCode picks the department analysed when the request
// names none.
func (s *Smells) DefaultDepartmentCode(ctx context.Context) (string, error) {
	return s.store.FirstDepartmentCode(ctx)
}

// AnalyzeDepartment reports on a department's projects and people for
// tasks created in [from, to]. Invalid bounds default to the last
// DefaultAnalysisDays days. Every helper reloads the rows it needs.
func (s *Smells) AnalyzeDepartment(ctx context.Context, code string, from, to store.Date) (DepartmentAnalysis, error) {
	today := s.Today()
	if !to.Valid {
		to = today
	}
	if !from.Valid {
		from = today.AddDays(-DefaultAnalysisDays)
	}
	dept, err := s.store.GetDepartmentByCode(ctx, code)
	if err != nil {
		return DepartmentAnalysis{}, err
	}
	projects, err := s.store.ProjectsByDepartment(ctx, dept.ID)
	if err != nil {
		return DepartmentAnalysis{}, err
	}
	total, err := s.store.CountProjectsByDepartment(ctx, dept.ID)
	if err != nil {
		return DepartmentAnalysis{}, err
	}
	active := 0
	for _, p := range projects {
		if !p.EndDate.Valid || !p.EndDate.Before(today) {
			active++
		}
	}
	out := DepartmentAnalysis{
		Department: DepartmentSummary{Name: dept.Name, Code: dept.Code, TotalProjects: total, ActiveProjects: active},
		Projects:   make([]ProjectAnalysis, 0, len(projects)),
		StartDate:  from,
		EndDate:    to,
	}
	if out.Employees, err = s.employeePerformance(ctx, dept, from, to); err != nil {
		return out, err
	}
	if out.OverallMetrics, err = s.overallMetrics(ctx, dept, projects, from, to); err != nil {
		return out, err
	}
	for _, p := range projects {
		pa, err := s.analyzeProject(ctx, p, from, to, today)
		if err != nil {
			return out, err
		}
		out.Projects = append(out.Projects, pa)
	}
	return out, nil
}

func (s *Smells) analyzeProject(ctx context.Context, p store.Project, from, to, today store.Date) (ProjectAnalysis, error) {
	tasks, err := s.store.TasksByProjectCreatedBetween(ctx, p.ID, from, to)
	if err != nil {
		return ProjectAnalysis{}, err
	}
	team, err := s.teamPerformance(ctx, p, tasks, today)
	if err != nil {
		return ProjectAnalysis{}, err
	}
	budget, err := s.budgetUtilization(ctx, p)
	if err != nil {
		return ProjectAnalysis{}, err
	}
	return ProjectAnalysis{
		Name:              p.Name,
		Code:              p.Code,
		StartDate:         p.StartDate,
		EndDate:           p.EndDate,
		Budget:            p.Budget,
		TaskMetrics:       taskMetrics(tasks),
		TeamPerformance:   team,
		BudgetUtilization: budget,
	}, nil
}

func (s *Smells) teamPerformance(ctx context.Context, p store.Project, tasks []store.Task, today store.Date) ([]MemberPerformance, error) {
	assignments, err := s.store.AssignmentsByProject(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	out := make([]MemberPerformance, 0, len(assignments))
	for _, a := range assignments {
		emp, err := s.store.GetEmployee(ctx, a.EmployeeID)
		if err != nil {
			return nil, err
		}
		var mine []store.Task
		overdue := 0
		for _, t := range tasks {
			if t.AssignedToID != emp.ID {
				continue
			}
			mine = append(mine, t)
			if t.IsOverdue(today) {
				overdue++
			}
		}
		m := taskMetrics(mine)
		out = append(out, MemberPerformance{
			Employee:       emp.FullName(),
			Role:           a.Role,
			TotalTasks:     m.TotalTasks,
			CompletedTasks: m.CompletedTasks,
			CompletionRate: m.CompletionRate,
			OverdueTasks:   overdue,
		})
	}
	return out, nil
}

func (s *Smells) budgetUtilization(ctx context.Context, p store.Project) (BudgetUtilization, error) {
	assignments, err := s.store.AssignmentsByProject(ctx, p.ID)
	if err != nil {
		return BudgetUtilization{}, err
	}
	out := BudgetUtilization{TotalBudget: p.Budget, EmployeeCosts: make([]EmployeeCost, 0, len(assignments))}
	for _, a := range assignments {
		emp, err := s.store.GetEmployee(ctx, a.EmployeeID)
		if err != nil {
			return BudgetUtilization{}, err
		}
		cost := emp.Salary * float64(a.HoursAllocated) / HoursPerYear
		out.TotalCost += cost
		out.EmployeeCosts = append(out.EmployeeCosts, EmployeeCost{Employee: emp.FullName(), Hours: a.HoursAllocated, Cost: cost})
	}
	if p.Budget > 0 {
		out.UtilizationPercentage = out.TotalCost / p.Budget * 100
	}
	return out, nil
}

func (s *Smells) employeePerformance(ctx context.Context, dept store.Department, from, to store.Date) ([]EmployeePerformance, error) {
	employees, err := s.store.EmployeesByDepartment(ctx, dept.ID)
	if err != nil {
		return nil, err
	}
	out := make([]EmployeePerformance, 0, len(employees))
	for _, e := range employees {
		tasks, err := s.store.TasksByAssigneeCreatedBetween(ctx, e.ID, from, to)
		if err != nil {
			return nil, err
		}
		projects, err := s.store.ProjectsForEmployeeOverlapping(ctx, e.ID, from, to)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(projects))
		for _, p := range projects {
			names = append(names, p.Name)
		}
		manager := noManager
		if e.ManagerID != nil {
			m, err := s.store.GetEmployee(ctx, *e.ManagerID)
			if err != nil {
				return nil, err
			}
			manager = m.FullName()
		}
		out = append(out, EmployeePerformance{
			Name:        e.FullName(),
			Email:       e.Email,
			Manager:     manager,
			Projects:    names,
			TaskMetrics: taskMetrics(tasks),
		})
	}
	return out, nil
}

func (s *Smells) overallMetrics(ctx context.Context, dept store.Department, projects []store.Project, from, to store.Date) (OverallMetrics, error) {
	var all []store.Task
	budget := 0.0
	for _, p := range projects {
		tasks, err := s.store.TasksByProjectCreatedBetween(ctx, p.ID, from, to)
		if err != nil {
			return OverallMetrics{}, err
		}
		all = append(all, tasks...)
		budget += p.Budget
	}
	employees, err := s.store.CountEmployeesByDepartment(ctx, dept.ID)
	if err != nil {
		return OverallMetrics{}, err
	}
	m := taskMetrics(all)
	out := OverallMetrics{
		TotalTasks:     m.TotalTasks,
		CompletedTasks: m.CompletedTasks,
		CompletionRate: m.CompletionRate,
		TotalBudget:    budget,
		TotalEmployees: employees,
	}
	if employees > 0 {
		out.AvgTasksPerEmployee = float64(m.TotalTasks) / float64(employees)
	}
	return out, nil
}
