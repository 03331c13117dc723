package main

import (
	"context"

	"github.com/thejadex/RE-VLab/core/account"
	"github.com/thejadex/RE-VLab/core/scenario"
	"github.com/thejadex/RE-VLab/core/submission"
)

var (
	sampleAdmin = account.Seed{
		Username:    "admin",
		FirstName:   "Admin",
		LastName:    "User",
		Email:       "admin@requirementslab.com",
		Password:    "admin123",
		IsSuperuser: true,
	}
	sampleStudent = account.Seed{
		Username:  "student1",
		FirstName: "John",
		LastName:  "Doe",
		Email:     "student1@example.com",
		Password:  "student123",
		StudentID: "STU001",
	}

	sampleScenarios = []scenario.Data{
		{
			Title:        "E-commerce Platform Development",
			Difficulty:   scenario.DifficultyIntermediate,
			Introduction: "You are tasked with developing a comprehensive e-commerce platform for a growing retail business.",
			Aim:          "To create a user-friendly online shopping platform that supports product browsing, purchasing, and order management.",
			Objectives:   "Enable customer registration and authentication, implement product catalog with search functionality, develop shopping cart and checkout process, create order tracking system.",
			Description: `The client is a mid-sized retail company that wants to expand their business online. They currently have a physical store but no online presence. The platform should support:

- Customer account management
- Product catalog with categories and search
- Shopping cart functionality
- Secure payment processing
- Order management and tracking
- Admin panel for inventory management
- Mobile-responsive design
- Integration with existing inventory system

The target audience includes tech-savvy millennials and Gen-X customers who prefer online shopping. The platform should be intuitive, fast, and secure.`,
		},
		{
			Title:        "University Course Management System",
			Difficulty:   scenario.DifficultyIntermediate,
			Introduction: "Design a comprehensive course management system for a university to handle student enrollment, course scheduling, and academic records.",
			Aim:          "To streamline university operations by providing an integrated system for course management, student enrollment, and academic tracking.",
			Objectives:   "Implement student and faculty registration, create course scheduling system, develop grade management functionality, enable transcript generation.",
			Description: `The university currently uses multiple disconnected systems for different academic functions. They need a unified platform that can:

- Manage student and faculty profiles
- Handle course creation and scheduling
- Process student enrollment and waitlists
- Track attendance and grades
- Generate transcripts and reports
- Manage academic calendar and events
- Support different user roles (students, faculty, admin)
- Integrate with existing student information systems

The system should be scalable to handle 10,000+ students and support both on-campus and online courses.`,
		},
		{
			Title:        "Healthcare Appointment Booking System",
			Difficulty:   scenario.DifficultyIntermediate,
			Introduction: "Develop a digital appointment booking system for a multi-specialty healthcare clinic.",
			Aim:          "To improve patient experience and clinic efficiency through automated appointment scheduling and management.",
			Objectives:   "Create patient registration system, implement doctor availability management, develop appointment booking interface, enable automated reminders.",
			Description: `A healthcare clinic with multiple specialties wants to modernize their appointment booking process. Currently, all appointments are scheduled via phone calls, leading to inefficiencies and patient dissatisfaction.

The system requirements include:

- Patient registration and profile management
- Doctor and staff scheduling
- Appointment booking with specialty selection
- Automated email/SMS reminders
- Appointment rescheduling and cancellation
- Waitlist management
- Integration with electronic health records
- HIPAA compliance and data security
- Mobile app for patients
- Reporting and analytics for clinic management

The clinic serves 500+ patients daily across 15 different specialties.`,
		},
	}

	sampleRequirements = []submission.RequirementData{
		{
			Type:        submission.TypeFunctional,
			Title:       "User Registration",
			Description: "The system shall allow new users to create accounts with email verification.",
			Priority:    submission.PriorityHigh,
		},
		{
			Type:        submission.TypeFunctional,
			Title:       "Product Search",
			Description: "Users shall be able to search for products using keywords, categories, and filters.",
			Priority:    submission.PriorityHigh,
		},
		{
			Type:        submission.TypeNonFunctional,
			Title:       "Response Time",
			Description: "The system shall respond to user requests within 2 seconds under normal load.",
			Priority:    submission.PriorityMedium,
		},
		{
			Type:        submission.TypeBusiness,
			Title:       "Payment Processing",
			Description: "The system shall support multiple payment methods including credit cards and PayPal.",
			Priority:    submission.PriorityHigh,
		},
	}
)

// sampleData loads demo data. Running it again only fills in what is missing.
func (cli *commandLine) sampleData() error {
	ctx := context.Background()
	cli.printf("Creating sample data...\n")

	admin, created, err := cli.accSvc.EnsureAccount(ctx, sampleAdmin)
	if err != nil {
		return err
	}
	if created {
		cli.printf("Created admin user: %s/%s\n", sampleAdmin.Username, sampleAdmin.Password)
	}
	student, created, err := cli.accSvc.EnsureAccount(ctx, sampleStudent)
	if err != nil {
		return err
	}
	if created {
		cli.printf("Created student user: %s/%s\n", sampleStudent.Username, sampleStudent.Password)
	}

	existing, err := cli.scSvc.ListAll(ctx)
	if err != nil {
		return err
	}
	byTitle := make(map[string]scenario.Scenario, len(existing))
	for _, sc := range existing {
		byTitle[sc.Title] = sc
	}

	active := true
	for _, data := range sampleScenarios {
		if _, ok := byTitle[data.Title]; ok {
			continue
		}
		data.IsActive = &active
		sc, err := cli.scSvc.Create(ctx, admin, data)
		if err != nil {
			return err
		}
		byTitle[sc.Title] = sc
		cli.printf("Created scenario: %s\n", sc.Title)
	}

	// the student's draft only gets requirements while it is still empty
	first := byTitle[sampleScenarios[0].Title]
	if first.IsActive {
		ws, err := cli.subSvc.Workspace(ctx, student, first.ID)
		if err != nil {
			return err
		}
		if ws.Submission.IsDraft() && ws.Requirements.Len() == 0 {
			for _, data := range sampleRequirements {
				if _, err := cli.subSvc.AddRequirement(ctx, student, ws.Submission.ID, data); err != nil {
					return err
				}
			}
			cli.printf("Created sample submission with requirements\n")
		}
	}

	cli.printf("Sample data created successfully!\n")
	cli.printf("You can now login with:\n")
	cli.printf("Admin: %s/%s\n", sampleAdmin.Username, sampleAdmin.Password)
	cli.printf("Student: %s/%s\n", sampleStudent.Username, sampleStudent.Password)
	return nil
}
