package tools

import (
	"fmt"
	"net/http"
	"strings"

	"recruitcrm-mcp/internal/recruitcrm"
)

// Catalog is the immutable name -> Definition table.
type Catalog struct {
	defs   []Definition
	byName map[string]int
}

// NewCatalog validates defs and indexes them by name.
func NewCatalog(defs []Definition) (*Catalog, error) {
	c := &Catalog{
		defs:   make([]Definition, len(defs)),
		byName: make(map[string]int, len(defs)),
	}
	copy(c.defs, defs)
	for i, d := range c.defs {
		if d.Name == "" {
			return nil, fmt.Errorf("tool #%d has no name", i)
		}
		if _, dup := c.byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", d.Name)
		}
		if d.Method == "" || d.Service == "" || !strings.HasPrefix(d.Path, "/") {
			return nil, fmt.Errorf("tool %q: method, service and absolute path are required", d.Name)
		}
		seen := make(map[string]bool, len(d.Params))
		for _, p := range d.Params {
			if seen[p.Name] {
				return nil, fmt.Errorf("tool %q: duplicate param %q", d.Name, p.Name)
			}
			seen[p.Name] = true
			if p.Spread && p.Type != TypeObject {
				return nil, fmt.Errorf("tool %q: spread param %q must be an object", d.Name, p.Name)
			}
			objects := p.Type == TypeObject || p.Type == TypeArray && p.Items == TypeObject
			if (p.Shape != nil || len(p.Exclude) > 0) && !objects {
				return nil, fmt.Errorf("tool %q: param %q shapes non-object values", d.Name, p.Name)
			}
			if p.Unwrap && p.Type != TypeArray {
				return nil, fmt.Errorf("tool %q: unwrap param %q must be an array", d.Name, p.Name)
			}
		}
		for _, ph := range d.placeholders() {
			p, ok := d.Param(ph)
			if !ok || p.location() != InPath {
				return nil, fmt.Errorf("tool %q: placeholder {%s} has no path param", d.Name, ph)
			}
		}
		c.byName[d.Name] = i
	}
	return c, nil
}

// DefaultCatalog returns the RecruitCRM tool table.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(recruitCRMTools())
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the definition for name.
func (c *Catalog) Lookup(name string) (Definition, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}

// All returns every definition in catalog order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// ByCategory returns the definitions in one category.
func (c *Catalog) ByCategory(cat Category) []Definition {
	var out []Definition
	for _, d := range c.defs {
		if d.Category == cat {
			out = append(out, d)
		}
	}
	return out
}

// Len is the number of tools.
func (c *Catalog) Len() int { return len(c.defs) }

var appointmentKeys = []string{
	"title", "description", "startdate", "enddate", "reminder", "ownerid",
	"relatedto", "relatedtotypeid", "relatedtoname", "meetingtype", "no_cal_invites", "address",
}

var entityTypeHelp = "Entity type: 4=job, 5=candidate, 2=contact, 3=company"

var candidateSearchPaging = []Param{
	{Name: "page", Type: TypeInteger, Default: 1, In: InQuery, Description: "Page number (1-based)"},
	{Name: "size", Type: TypeInteger, Default: 100, In: InQuery, Description: "Page size (max 100)"},
}

func textColumn(entity, field, filterType string) map[string]any {
	return map[string]any{"entity": entity, "field": field, "type": "text", "filter_type": filterType}
}

func recruitCRMTools() []Definition {
	return []Definition{
		{
			Name: "candidate_job_assignment_search",
			Description: "Search candidates by job assignment within a stage date range, optionally filtered by " +
				"pipeline stage, recruiter, company, job keywords and current stage. Resolve stage labels and " +
				"recruiter names with get_available_hiring_stages and get_available_users first.",
			Category: CategoryReports,
			Keywords: []string{"reports", "candidates", "analytics", "pipeline", "placed", "assigned"},
			Usage:    "Use for job assignment, pipeline and placement searches: get_available_hiring_stages -> get_available_users -> candidate_job_assignment_search",
			Helpers:  []string{"get_available_hiring_stages", "get_available_users"},
			Method:   http.MethodPost,
			Service:  recruitcrm.ServiceAlbatross,
			Path:     "/v1/reports/search/get",
			Body: map[string]any{
				"sort_by":                       "stagedate",
				"sortOrder":                     "desc",
				"andsearch":                     []any{},
				"orsearch":                      []any{},
				"notsearch":                     []any{},
				"fullTextSearch":                true,
				"columns.stagedate.entity":      "assignjobcandidate",
				"columns.stagedate.field":       "stagedate",
				"columns.stagedate.type":        "date",
				"columns.stagedate.filter_type": "range",
			},
			Params: []Param{
				{Name: "stage_from", Type: TypeEpoch, Required: true, Stringify: true, Field: "columns.stagedate.filter_value", Description: "Start date YYYY-MM-DD"},
				{Name: "stage_to", Type: TypeEpoch, Required: true, Stringify: true, Field: "columns.stagedate.filter_value_second", Description: "End date YYYY-MM-DD"},
				{
					Name: "hiring_stage_id", Type: TypeInteger, Stringify: true, Field: "columns.candidatestatusid.filter_value",
					Siblings:    map[string]any{"entity": "candidate", "field": "candidatestatusid", "type": "dropdown", "filter_type": "is"},
					Description: "Pipeline stage id the candidate was moved to (see get_available_hiring_stages)",
				},
				{
					Name: "updated_by_id", Type: TypeInteger, Stringify: true, Field: "columns.updatedby.filter_value",
					Siblings:    map[string]any{"entity": "candidate", "field": "updatedby", "pseudo": "True", "type": "dropdown", "filter_type": "is"},
					Description: "Recruiter user id (see get_available_users)",
				},
				{
					Name: "job_or_keywords", Type: TypeArray, Items: TypeString, Join: ",", Field: "columns.jobname.filter_value",
					Siblings:    textColumn("assignjobcandidate", "jobname", "or_search"),
					Description: "Job keywords (OR)",
				},
				{
					Name: "current_stage", Type: TypeString, Field: "columns.currenthiringstage.filter_value",
					Siblings:    map[string]any{"entity": "candidate", "field": "currenthiringstage", "type": "multiselect", "filter_type": "contains"},
					Description: "Current stage contains",
				},
				{Name: "company", Type: TypeString, Field: "columns.companyname.filter_value", Siblings: textColumn("company", "companyname", "contains"), Description: "Company contains"},
				{Name: "company_not_contains", Type: TypeString, Field: "columns.companyname.filter_value", Siblings: textColumn("company", "companyname", "not_contains"), Description: "Exclude company contains"},
				{Name: "current_stage_not_contains", Type: TypeString, Field: "columns.currenthiringstage.filter_value", Siblings: textColumn("candidate", "currenthiringstage", "not_contains"), Description: "Exclude current stage contains"},
				{Name: "hiring_stage_not_contains", Type: TypeString, Field: "columns.candidatestatusid.filter_value", Siblings: textColumn("candidate", "candidatestatusid", "not_contains"), Description: "Exclude pipeline stage contains"},
				{Name: "job_not_contains", Type: TypeString, Field: "columns.jobname.filter_value", Siblings: textColumn("assignjobcandidate", "jobname", "not_contains"), Description: "Exclude job title contains"},
				{Name: "page", Type: TypeInteger, Default: 1, Description: "Page index"},
				{Name: "page_size", Type: TypeInteger, Default: 50, Description: "Rows per page"},
			},
		},
		{
			Name:        "get_available_hiring_stages",
			Description: "List the hiring stages (id and label) of the master hiring pipeline.",
			Category:    CategoryHelpers,
			Keywords:    []string{"hiring stages", "pipeline", "stage"},
			Method:      http.MethodGet,
			Service:     recruitcrm.ServicePipeline,
			Path:        "/v1/pipelines/list",
		},
		{
			Name:        "get_available_users",
			Description: "List users and recruiters (id, name, status) usable as report filters. userstatus 0 means active.",
			Category:    CategoryHelpers,
			Keywords:    []string{"users", "recruiters", "team members"},
			Method:      http.MethodPost,
			Service:     recruitcrm.ServiceAlbatross,
			Path:        "/v1/global/get-users-for-rpr",
			Query:       map[string]string{"report": "recruiter"},
		},
		{
			Name:        "get_available_kpis",
			Description: "List the KPIs (value, label) available to team performance reports.",
			Category:    CategoryHelpers,
			Keywords:    []string{"kpi", "kpis", "metrics"},
			Method:      http.MethodGet,
			Service:     recruitcrm.ServiceReport,
			Path:        "/v1/reports-kpi",
			Query:       map[string]string{"report_type": "1"},
		},
		{
			Name: "get_team_performance_report",
			Description: "KPI counts (notes, calls, placements, ...) per recruiter or team for a date range. " +
				"Use get_available_users and get_available_kpis to obtain recruiter ids and KPI entries.",
			Category: CategoryReports,
			Keywords: []string{"performance", "kpi", "metrics", "team", "recruiter", "stats"},
			Usage:    "Use for recruiter performance and KPI tracking: get_available_users -> get_available_kpis -> get_team_performance_report",
			Helpers:  []string{"get_available_users", "get_available_kpis"},
			Method:   http.MethodPost,
			Service:  recruitcrm.ServiceReport,
			Path:     "/v1/reports/team-performance-report",
			Params: []Param{
				{Name: "recruiter_ids", Type: TypeArray, Items: TypeInteger, Required: true, Description: "Recruiter user ids"},
				{
					Name: "kpi_lists", Type: TypeArray, Items: TypeObject, Required: true, RequiredKeys: []string{"value", "label"},
					// the report endpoint rejects the email KPIs
					Exclude:     map[string][]string{"value": {"email1", "email2"}},
					Shape:       &Shape{Set: map[string]any{"checked": true}},
					Description: "KPI entries {value, label} from get_available_kpis; email1 and email2 are dropped",
				},
				{Name: "from_date", Type: TypeEpoch, Required: true, Description: "Start date (epoch seconds or YYYY-MM-DD)"},
				{Name: "to_date", Type: TypeEpoch, Required: true, Description: "End date (epoch seconds or YYYY-MM-DD)"},
				{Name: "team_ids", Type: TypeArray, Items: TypeInteger, Default: []any{}, Description: "Team ids"},
			},
		},
		{
			Name:        "global_search",
			Description: "Search across candidates, contacts, companies, jobs or deals by keyword.",
			Category:    CategorySearch,
			Keywords:    []string{"search", "find", "lookup", "candidates", "contacts", "companies", "jobs"},
			Usage:       "Use to find entities by name or keyword, and to resolve slugs and ids for other tools",
			Method:      http.MethodPost,
			Service:     recruitcrm.ServiceAlbatross,
			Path:        "/v1/global/search-entity",
			Params: []Param{
				{Name: "search", Type: TypeString, Required: true, Description: "Search string (name, email, ...)"},
				{Name: "candidates", Type: TypeBoolean, Default: true, Description: "Search candidates"},
				{Name: "contacts", Type: TypeBoolean, Default: true, Description: "Search contacts"},
				// the API spells this field "compnaies"
				{Name: "companies", Type: TypeBoolean, Default: false, Field: "compnaies", Description: "Search companies"},
				{Name: "jobs", Type: TypeBoolean, Default: false, Description: "Search jobs"},
				{Name: "deals", Type: TypeBoolean, Default: false, Description: "Search deals"},
			},
		},
		{
			Name:                 "add_to_hotlist",
			Description:          "Add one or more entity ids to one or more hotlists by name.",
			Category:             CategoryActions,
			Keywords:             []string{"hotlist", "add", "candidates", "contacts", "companies", "jobs", "deals"},
			Usage:                "global_search -> confirm hotlist name -> add_to_hotlist",
			RequiresConfirmation: true,
			Method:               http.MethodPost,
			Service:              recruitcrm.ServiceAlbatross,
			Path:                 "/v1/hotlists",
			Params: []Param{
				{Name: "entity_name", Type: TypeString, Required: true, Description: "candidates, contacts, companies, jobs or deals"},
				{Name: "selectedrows", Type: TypeArray, Items: TypeInteger, Required: true, Description: "Entity ids"},
				{Name: "name", Type: TypeArray, Items: TypeString, Required: true, Description: "Hotlist names (exact match)"},
			},
		},
		{
			Name: "create_meeting",
			Description: "Create a meeting in RecruitCRM. startdate/enddate are epoch seconds; relatedtotypeid: " +
				"4=job, 5=candidate, 2=contact, 3=company.",
			Category:             CategoryActions,
			Keywords:             []string{"schedule", "meeting", "appointment", "interview", "call"},
			Usage:                "global_search -> check_calendar_meetings -> create_gmeet_link -> create_meeting",
			Helpers:              []string{"global_search", "get_available_users", "create_gmeet_link", "check_calendar_meetings"},
			RequiresConfirmation: true,
			Method:               http.MethodPost,
			Service:              recruitcrm.ServiceAlbatross,
			Path:                 "/v1/meetings",
			Body:                 map[string]any{"task": false},
			Params: []Param{
				{
					Name: "appointment", Type: TypeObject, Required: true,
					RequiredKeys: appointmentKeys,
					Shape:        &Shape{Keys: appointmentKeys},
					Description:  "Appointment object as per the RecruitCRM API",
				},
				{Name: "action_source", Type: TypeString, Default: "add_edit_appointment", Description: "Action source"},
			},
		},
		{
			Name:        "create_gmeet_link",
			Description: "Generate a Google Meet link to use as a meeting address.",
			Category:    CategoryHelpers,
			Keywords:    []string{"gmeet", "google meet", "meeting link"},
			Method:      http.MethodGet,
			Service:     recruitcrm.ServiceAlbatross,
			Path:        "/v1/conference-settings/g-meet",
		},
		{
			Name:        "check_calendar_meetings",
			Description: "List meetings on the calendars of the given users between two dates, to find free slots.",
			Category:    CategoryHelpers,
			Keywords:    []string{"calendar", "availability", "free slot", "meetings"},
			Method:      http.MethodPost,
			Service:     recruitcrm.ServiceCalendar,
			Path:        "/v1/calendar/meetings",
			Params: []Param{
				{Name: "user_ids", Type: TypeArray, Items: TypeInteger, Required: true, Unwrap: true, Description: "User ids whose calendars to check"},
				{Name: "startDate", Type: TypeEpoch, Required: true, Description: "Start (epoch seconds or ISO date)"},
				{Name: "endDate", Type: TypeEpoch, Required: true, Description: "End (epoch seconds or ISO date)"},
				{Name: "searchTerm", Type: TypeString, Default: "", Description: "Optional title search"},
			},
		},
		{
			Name: "send_email",
			Description: "Send an email to candidates, contacts or other entities. recivers[].entity_type: " +
				entityTypeHelp + ". Confirm the content with the user before sending.",
			Category:             CategoryCommunication,
			Keywords:             []string{"email", "send", "message", "communicate", "outreach"},
			Usage:                "global_search for recipients -> confirm content with the user -> send_email",
			Helpers:              []string{"global_search"},
			RequiresConfirmation: true,
			Method:               http.MethodPost,
			Service:              recruitcrm.ServiceEmail,
			Path:                 "/v2/nylas-v3/emails",
			Params: []Param{
				{Name: "email", Type: TypeObject, Required: true, RequiredKeys: []string{"recivers", "subject", "body"}, Description: "Email object {recivers, cc, bcc, subject, body}"},
				{Name: "is_send", Type: TypeBoolean, Default: true, Description: "Whether to send the email"},
				{Name: "linked_email_type", Type: TypeInteger, Default: 1, Description: "Linked email type"},
			},
		},
		{
			Name:        "create_note",
			Description: "Create a note on a candidate, job, contact or company.",
			Category:    CategoryActions,
			Keywords:    []string{"note", "add note", "create note", "comment", "log"},
			Usage:       "global_search -> get_note_types (if needed) -> create_note",
			Helpers:     []string{"global_search", "get_note_types"},
			Method:      http.MethodPost,
			Service:     recruitcrm.ServiceAlbatross,
			Path:        "/v1/notes",
			Params: []Param{
				{Name: "relatedto", Type: TypeString, Required: true, Description: "Entity slug"},
				{Name: "relatedtotypeid", Type: TypeInteger, Required: true, Description: entityTypeHelp},
				{Name: "description", Type: TypeString, Required: true, Description: "HTML note body"},
				{Name: "relatedtoname", Type: TypeString, Required: true, Description: "Name of the related entity"},
				{Name: "relatedtocompany", Type: TypeString, Null: true, Description: "Company name"},
				{Name: "userInNote", Type: TypeObject, Default: map[string]any{}, Description: "Mentioned users"},
				{Name: "notetype", Type: TypeInteger, Null: true, Description: "Note type id (see get_note_types)"},
			},
		},
		{
			Name:        "get_note_types",
			Description: "List the available note types (id and label).",
			Category:    CategoryHelpers,
			Keywords:    []string{"note types"},
			Method:      http.MethodGet,
			Service:     recruitcrm.ServiceAlbatross,
			Path:        "/v1/notes/get-note-types",
		},
		{
			Name:        "boolean_search_count",
			Description: "Count candidates matching a boolean search such as '(java OR php) AND (senior OR manager)'.",
			Category:    CategoryHelpers,
			Keywords:    []string{"count", "boolean"},
			Method:      http.MethodPost,
			Service:     recruitcrm.ServiceCandidate,
			Path:        "/v2/candidates/search/count",
			Body:        booleanSearchBody(),
			Params:      booleanSearchParams(),
		},
		{
			Name:        "boolean_search_candidates",
			Description: "List candidates matching a boolean search. Include synonyms and similar titles in the keyword.",
			Category:    CategorySearch,
			Keywords:    []string{"boolean", "advanced search", "candidates", "skills", "AND", "OR"},
			Usage:       "Use for skill-based or multi-criteria candidate searches; check the hit count with boolean_search_count first",
			Helpers:     []string{"boolean_search_count"},
			Method:      http.MethodPost,
			Service:     recruitcrm.ServiceCandidate,
			Path:        "/v2/candidates/search/get",
			Body:        booleanSearchBody(),
			Params:      append(booleanSearchParams(), candidateSearchPaging...),
		},
		{
			Name:        "get_candidate_search_fields",
			Description: "List the candidate fields (label, field, type) usable in advanced_search_candidates filters.",
			Category:    CategoryHelpers,
			Keywords:    []string{"search fields", "columns"},
			Method:      http.MethodGet,
			Service:     recruitcrm.ServiceCandidate,
			Path:        "/v2/entity-columns",
			Query:       map[string]string{"entity": "candidates"},
		},
		{
			Name: "advanced_search_candidates",
			Description: "Filter-group candidate search. Each group is {groupFilterJoinOperator, filters[]} and each " +
				"filter is {groupType, filterName, dbField, filterValue, filterType, fieldType}. Use 'contains' for text fields.",
			Category: CategorySearch,
			Keywords: []string{"advanced search", "filter", "candidates", "criteria"},
			Usage:    "Use for structured filtering on specific fields: get_candidate_search_fields -> advanced_search_candidates",
			Helpers:  []string{"get_candidate_search_fields"},
			Method:   http.MethodPost,
			Service:  recruitcrm.ServiceCandidate,
			Path:     "/v2/candidates/search/get",
			Body: map[string]any{
				"defaultFilterList": nil,
				"booleanSearchList": nil,
				"sortPriorityList":  []any{},
			},
			Params: append([]Param{
				{
					Name: "groupFilterList", Type: TypeArray, Items: TypeObject, Required: true,
					RequiredKeys: []string{"filters"}, Field: "filterSearchList.groupFilterList",
					Shape: &Shape{
						Keys:     []string{"groupFilterJoinOperator", "filters"},
						Defaults: map[string]any{"groupFilterJoinOperator": "AND"},
						Lists: map[string]*Shape{
							"filters": {Keys: []string{"groupType", "filterName", "dbField", "filterValue", "filterType", "fieldType"}},
						},
					},
					Description: "Filter groups",
				},
				{Name: "groupJoinOperator", Type: TypeString, Default: "OR", Field: "filterSearchList.groupJoinOperator", Description: "AND or OR"},
			}, candidateSearchPaging...),
		},
		{
			Name:        "get_candidate",
			Description: "Fetch one candidate by slug.",
			Category:    CategorySearch,
			Keywords:    []string{"candidate", "profile", "details"},
			Helpers:     []string{"global_search"},
			Method:      http.MethodGet,
			Service:     recruitcrm.ServiceAPI,
			Path:        "/v1/candidates/{candidate_slug}",
			Params: []Param{
				{Name: "candidate_slug", Type: TypeString, In: InPath, Description: "Candidate slug"},
			},
		},
		{
			Name:                 "update_candidate",
			Description:          "Update fields of one candidate. fields holds the candidate attributes to change.",
			Category:             CategoryActions,
			Keywords:             []string{"update", "edit", "candidate"},
			Helpers:              []string{"get_candidate"},
			RequiresConfirmation: true,
			Method:               http.MethodPost,
			Service:              recruitcrm.ServiceAPI,
			Path:                 "/v1/candidates/{candidate_slug}",
			Params: []Param{
				{Name: "candidate_slug", Type: TypeString, In: InPath, Description: "Candidate slug"},
				{Name: "fields", Type: TypeObject, Required: true, Spread: true, Description: "Candidate attributes to update"},
			},
		},
		{
			Name:        "search_candidates",
			Description: "Search candidates by name, email, phone, LinkedIn or location.",
			Category:    CategorySearch,
			Keywords:    []string{"search", "find", "candidates", "email", "linkedin"},
			Method:      http.MethodGet,
			Service:     recruitcrm.ServiceAPI,
			Path:        "/v1/candidates/search",
			Params: []Param{
				{Name: "first_name", Type: TypeString, In: InQuery},
				{Name: "last_name", Type: TypeString, In: InQuery},
				{Name: "email", Type: TypeString, In: InQuery},
				{Name: "contact_number", Type: TypeString, In: InQuery},
				{Name: "linkedin", Type: TypeString, In: InQuery},
				{Name: "city", Type: TypeString, In: InQuery},
				{Name: "country", Type: TypeString, In: InQuery},
				{Name: "page", Type: TypeInteger, In: InQuery},
			},
		},
		{
			Name:        "get_job",
			Description: "Fetch one job posting by slug.",
			Category:    CategorySearch,
			Keywords:    []string{"job", "posting", "details"},
			Helpers:     []string{"global_search"},
			Method:      http.MethodGet,
			Service:     recruitcrm.ServiceAPI,
			Path:        "/v1/jobs/{job_slug}",
			Params: []Param{
				{Name: "job_slug", Type: TypeString, In: InPath, Description: "Job slug"},
			},
		},
		{
			Name:        "search_jobs",
			Description: "Search job postings by name, company, status or location.",
			Category:    CategorySearch,
			Keywords:    []string{"search", "find", "jobs", "openings", "postings"},
			Method:      http.MethodGet,
			Service:     recruitcrm.ServiceAPI,
			Path:        "/v1/jobs/search",
			Params: []Param{
				{Name: "name", Type: TypeString, In: InQuery, Description: "Job name contains"},
				{Name: "company_slug", Type: TypeString, In: InQuery},
				{Name: "job_status", Type: TypeInteger, In: InQuery},
				{Name: "city", Type: TypeString, In: InQuery},
				{Name: "country", Type: TypeString, In: InQuery},
				{Name: "page", Type: TypeInteger, In: InQuery},
			},
		},
	}
}

func booleanSearchBody() map[string]any {
	return map[string]any{
		"defaultFilterList": nil,
		"filterSearchList":  nil,
		"sortPriorityList":  []any{},
	}
}

func booleanSearchParams() []Param {
	return []Param{
		{Name: "keyword", Type: TypeString, Required: true, Field: "booleanSearchList.keyword", Description: "Boolean search string"},
		{Name: "selectedOptions", Type: TypeArray, Items: TypeString, Default: []any{"entity"}, Field: "booleanSearchList.selectedOptions", Description: "Selected search options"},
	}
}
