package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/cuetprep/examd/internal/config"
	"github.com/cuetprep/examd/internal/database"
	"github.com/cuetprep/examd/internal/logger"
	"github.com/cuetprep/examd/internal/model"
	"github.com/cuetprep/examd/internal/repository"
)

// seed-demo creates one candidate account and one published demo test so a
// fresh install has something to log into and attempt.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	candidateRepo := repository.NewCandidateRepository(pool)

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Seed Demo Candidate + Test ===")

	fmt.Print("Candidate Name (default Demo Candidate): ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Demo Candidate"
	}

	fmt.Print("Candidate Email (default demo@cuetprep.test): ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" {
		email = "demo@cuetprep.test"
	}

	fmt.Print("Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println()
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	candidateID, err := candidateRepo.Create(ctx, name, email, string(hash))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create candidate")
	}
	fmt.Printf("Candidate created (id=%d, email=%s)\n", candidateID, email)

	testID, err := seedDemoTest(ctx, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed demo test")
	}
	fmt.Printf("Demo test published (id=%s)\n", testID)
	fmt.Println("Restart the server (or wait for the next prewarm) to cache it.")
}

func seedDemoTest(ctx context.Context, pool *pgxpool.Pool) (uuid.UUID, error) {
	def := demoDefinition()

	_, err := pool.Exec(ctx,
		`INSERT INTO tests (id, title, subject, duration_seconds, marks_correct, marks_wrong, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		def.ID, def.Title, def.Subject, def.DurationSeconds, def.MarksCorrect, def.MarksWrong, def.Status,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert test: %w", err)
	}

	for _, q := range def.Questions {
		_, err := pool.Exec(ctx,
			`INSERT INTO questions (id, test_id, prompt, options, correct_option, explanation, subject, order_num)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (test_id, order_num) DO NOTHING`,
			q.ID, def.ID, q.Prompt, q.OptionsJSON(), q.CorrectOption, q.Explanation, q.Subject, q.OrderNum,
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert question %d: %w", q.OrderNum, err)
		}
	}

	return def.ID, nil
}

// demoDefinition is a short general-aptitude paper with the standard CUET
// marking scheme (+4 correct, -1 wrong).
func demoDefinition() *model.TestDefinition {
	// Fixed ID so reruns are idempotent.
	testID := uuid.MustParse("7b1d2a48-0000-4000-8000-000000000d30")

	questions := []struct {
		prompt  string
		options []string
		correct int
		explain string
	}{
		{
			"If 3x + 7 = 22, what is the value of x?",
			[]string{"3", "5", "7", "15"},
			1,
			"3x = 15, so x = 5.",
		},
		{
			"Which of the following is a synonym of 'candid'?",
			[]string{"Secretive", "Frank", "Hostile", "Careless"},
			1,
			"Candid means open and honest — frank.",
		},
		{
			"The SI unit of electric current is the:",
			[]string{"Volt", "Ohm", "Ampere", "Coulomb"},
			2,
			"Current is measured in amperes.",
		},
		{
			"Complete the series: 2, 6, 12, 20, 30, ...",
			[]string{"40", "42", "44", "46"},
			1,
			"Differences grow by 2: the next term is 30 + 12 = 42.",
		},
		{
			"Which article of the Indian Constitution abolishes untouchability?",
			[]string{"Article 14", "Article 17", "Article 19", "Article 21"},
			1,
			"Article 17 abolishes untouchability.",
		},
	}

	def := &model.TestDefinition{
		ID:              testID,
		Title:           "General Aptitude Demo",
		Subject:         "General Test",
		DurationSeconds: 600,
		MarksCorrect:    4,
		MarksWrong:      -1,
		Status:          model.TestStatusPublished,
	}
	for i, q := range questions {
		def.Questions = append(def.Questions, model.Question{
			ID:            uuid.New(),
			Prompt:        q.prompt,
			Options:       q.options,
			CorrectOption: q.correct,
			Explanation:   q.explain,
			Subject:       def.Subject,
			OrderNum:      i + 1,
		})
	}
	return def
}
