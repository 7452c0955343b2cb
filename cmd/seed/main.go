package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"wacampaign/internal/config"
	"wacampaign/internal/models"
	"wacampaign/internal/repository"
	"wacampaign/internal/service"
)

// ANSI color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

// Seeded rows carry these prefixes so -clear only removes its own data
const (
	templatePrefix = "seed_"
	campaignPrefix = "Seed: "
)

// Command-line flags
var (
	contactsCount  = flag.Int("contacts", 12, "Number of contacts per campaign")
	campaignsCount = flag.Int("campaigns", 2, "Number of campaigns to create")
	paused         = flag.Bool("paused", false, "Pause seeded campaigns so the worker leaves them alone")
	clearData      = flag.Bool("clear", false, "Clear existing seed data before inserting")
	showHelp       = flag.Bool("help", false, "Show usage information")
)

func main() {
	flag.Parse()

	if *showHelp {
		printUsage()
		os.Exit(0)
	}

	// Load .env file (ignore error if not present)
	_ = godotenv.Load()

	printInfo("=== Campaign Seeder ===\n")

	cfg, err := config.Load()
	if err != nil {
		printError(fmt.Sprintf("Failed to load configuration: %v", err))
		os.Exit(1)
	}

	printInfo("Connecting to database...")
	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		printError(fmt.Sprintf("Failed to open database connection: %v", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		printError(fmt.Sprintf("Failed to ping database: %v", err))
		os.Exit(1)
	}
	printSuccess("✓ Connected to database\n")

	ctx := context.Background()

	if *clearData {
		if err := clearSeedData(ctx, db); err != nil {
			printError(fmt.Sprintf("Failed to clear seed data: %v", err))
			os.Exit(1)
		}
	}

	templateSvc := service.NewTemplateService(repository.NewTemplateRepository(db))
	campaignSvc := service.NewCampaignService(
		repository.NewCampaignRepository(db),
		repository.NewContactRepository(db),
		templateSvc,
		service.NewSimulatedSender(1),
		nil,
	)

	templates, err := seedTemplates(ctx, templateSvc)
	if err != nil {
		printError(fmt.Sprintf("Failed to seed templates: %v", err))
		os.Exit(1)
	}

	campaigns, contacts, err := seedCampaigns(ctx, campaignSvc, templates, *campaignsCount, *contactsCount)
	if err != nil {
		printError(fmt.Sprintf("Failed to seed campaigns: %v", err))
		os.Exit(1)
	}

	printInfo("\n=== Seeding Summary ===")
	printSuccess(fmt.Sprintf("✓ Templates created: %d", len(templates)))
	printSuccess(fmt.Sprintf("✓ Campaigns created: %d", campaigns))
	printSuccess(fmt.Sprintf("✓ Contacts queued: %d", contacts))
	printInfo("\nSeeding completed successfully!")
}

// clearSeedData removes campaigns, their contacts and templates created by this tool
func clearSeedData(ctx context.Context, db *sql.DB) error {
	printWarning("Clearing existing seed data...")

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM campaign_contacts
		WHERE campaign_id IN (SELECT id FROM campaigns WHERE name LIKE $1)
	`, campaignPrefix+"%")
	if err != nil {
		return fmt.Errorf("failed to delete contacts: %w", err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM campaigns WHERE name LIKE $1", campaignPrefix+"%"); err != nil {
		return fmt.Errorf("failed to delete campaigns: %w", err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM templates WHERE name LIKE $1", templatePrefix+"%"); err != nil {
		return fmt.Errorf("failed to delete templates: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	printSuccess("✓ Seed data cleared\n")
	return nil
}

// seedTemplates registers a small template catalog
func seedTemplates(ctx context.Context, svc *service.TemplateService) ([]*models.Template, error) {
	printInfo("Seeding templates...")

	requests := []*service.CreateTemplateRequest{
		{
			Name:     templatePrefix + "weekend_sale",
			Category: "MARKETING",
			Language: "en_US",
			Components: []models.TemplateComponent{
				{Type: models.ComponentHeader, Format: "TEXT", Text: "Weekend sale in {{location}}"},
				{Type: models.ComponentBody, Text: "Hi {{contact_name}}! {{product}} are {{discount}} off until Sunday."},
				{Type: models.ComponentFooter, Text: "Reply STOP to opt out"},
			},
		},
		{
			Name:     templatePrefix + "order_ready",
			Category: "UTILITY",
			Language: "en_GB",
			Components: []models.TemplateComponent{
				{Type: models.ComponentBody, Text: "Hello {{contact_name}}, order {{order_id}} is ready for collection."},
			},
		},
	}

	templates := make([]*models.Template, 0, len(requests))
	for _, req := range requests {
		template, err := svc.CreateTemplate(ctx, req)
		if err != nil {
			return templates, fmt.Errorf("failed to create template %s: %w", req.Name, err)
		}
		templates = append(templates, template)
	}

	printSuccess(fmt.Sprintf("✓ Seeded %d templates", len(templates)))
	return templates, nil
}

// seedCampaigns creates campaigns with realistic Kenyan contacts
func seedCampaigns(ctx context.Context, svc *service.CampaignService, templates []*models.Template, count, perCampaign int) (int, int, error) {
	printInfo(fmt.Sprintf("Seeding %d campaigns with %d contacts each...", count, perCampaign))

	names := []string{"Michael", "Sophia", "James", "Olivia", "Daniel", "Emma", "Benjamin", "Ava", "Lucas", "Mia", "Noah", "Isabella"}
	locations := []string{"Nairobi", "Mombasa", "Kisumu", "Eldoret", "Nakuru", "Thika"}
	products := []string{"Smartphones", "Laptops", "Tablets", "Headphones", "Watches", "Speakers"}

	campaigns, queued := 0, 0
	for i := 0; i < count; i++ {
		template := templates[i%len(templates)]

		contacts := make([]service.ContactInput, perCampaign)
		for j := range contacts {
			vars := map[string]string{
				"location": locations[j%len(locations)],
				"product":  products[(i+j)%len(products)],
				"discount": fmt.Sprintf("%d%%", 10+5*(j%4)),
				"order_id": fmt.Sprintf("ORD-%d%03d", i+1, j+1),
			}
			raw, err := json.Marshal(vars)
			if err != nil {
				return campaigns, queued, fmt.Errorf("failed to encode variables: %w", err)
			}

			contacts[j] = service.ContactInput{
				Name:      names[j%len(names)],
				Phone:     fmt.Sprintf("+254700%02d%04d", i+1, j+1),
				Variables: raw,
			}
		}

		campaign, err := svc.CreateCampaign(ctx, &service.CreateCampaignRequest{
			Name:       fmt.Sprintf("%s%s #%d", campaignPrefix, template.Name, i+1),
			TemplateID: template.ID,
			Contacts:   contacts,
		})
		if err != nil {
			return campaigns, queued, fmt.Errorf("failed to create campaign %d: %w", i+1, err)
		}

		if *paused && campaign.Status == models.CampaignStatusSending {
			if _, err := svc.PauseCampaign(ctx, campaign.ID); err != nil {
				return campaigns, queued, fmt.Errorf("failed to pause campaign %d: %w", campaign.ID, err)
			}
		}

		campaigns++
		queued += len(contacts)
	}

	printSuccess(fmt.Sprintf("✓ Seeded %d campaigns", campaigns))
	return campaigns, queued, nil
}

// printSuccess prints a success message in green
func printSuccess(msg string) {
	fmt.Printf("%s%s%s\n", colorGreen, msg, colorReset)
}

// printError prints an error message in red
func printError(msg string) {
	fmt.Fprintf(os.Stderr, "%s%s%s\n", colorRed, msg, colorReset)
}

// printInfo prints an info message in cyan
func printInfo(msg string) {
	fmt.Printf("%s%s%s\n", colorCyan, msg, colorReset)
}

// printWarning prints a warning message in yellow
func printWarning(msg string) {
	fmt.Printf("%s%s%s\n", colorYellow, msg, colorReset)
}

// printUsage displays usage information
func printUsage() {
	printInfo("=== Campaign Seeder ===\n")
	fmt.Println("Usage: go run ./cmd/seed [flags]")
	fmt.Println("\nFlags:")
	flag.PrintDefaults()
	fmt.Println("\nExamples:")
	fmt.Println("  go run ./cmd/seed")
	fmt.Println("  go run ./cmd/seed -campaigns=3 -contacts=30 -paused")
	fmt.Println("  go run ./cmd/seed -clear")
	fmt.Println("\nNotes:")
	fmt.Println("  - Seeded campaigns start in 'sending' and are picked up by the worker unless -paused is set")
	fmt.Println("  - Use -clear to remove existing seed data before inserting new data")
}
