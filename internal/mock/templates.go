package mock

import (
	"strings"

	"github.com/flashcording/agent-orchestrator/internal/models"
)

const promptPlaceholder = "{{prompt}}"

// PromptTemplate is a quick-start prompt offered to the user
type PromptTemplate struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Prompt string `json:"prompt"`
}

// PromptTemplates lists the quick-start prompts
var PromptTemplates = []PromptTemplate{
	{ID: "login", Label: "Login Page", Prompt: "Create a Flask login page with email and password authentication"},
	{ID: "api", Label: "REST API", Prompt: "Create a REST API with CRUD operations for user management"},
	{ID: "readme", Label: "README", Prompt: "Generate a comprehensive README.md for this project"},
	{ID: "tests", Label: "Unit Tests", Prompt: "Write unit tests for the authentication module"},
}

var codeTemplates = map[string]string{
	models.LanguagePython: `# Generated by Flash AI Agent
# Prompt: {{prompt}}

from flask import Flask, request, jsonify
from flask_sqlalchemy import SQLAlchemy
from werkzeug.security import generate_password_hash, check_password_hash

app = Flask(__name__)
app.config['SQLALCHEMY_DATABASE_URI'] = 'sqlite:///users.db'
db = SQLAlchemy(app)

class User(db.Model):
    id = db.Column(db.Integer, primary_key=True)
    email = db.Column(db.String(120), unique=True, nullable=False)
    password_hash = db.Column(db.String(255), nullable=False)

    def set_password(self, password):
        self.password_hash = generate_password_hash(password)

    def check_password(self, password):
        return check_password_hash(self.password_hash, password)

@app.route('/api/register', methods=['POST'])
def register():
    data = request.get_json()
    email = data.get('email')
    password = data.get('password')

    if User.query.filter_by(email=email).first():
        return jsonify({'error': 'Email already registered'}), 400

    user = User(email=email)
    user.set_password(password)
    db.session.add(user)
    db.session.commit()

    return jsonify({'message': 'User registered successfully'}), 201

@app.route('/api/login', methods=['POST'])
def login():
    data = request.get_json()
    email = data.get('email')
    password = data.get('password')

    user = User.query.filter_by(email=email).first()
    if not user or not user.check_password(password):
        return jsonify({'error': 'Invalid credentials'}), 401

    return jsonify({'message': 'Login successful', 'user_id': user.id}), 200

if __name__ == '__main__':
    with app.app_context():
        db.create_all()
    app.run(debug=True)
`,
	models.LanguageJavaScript: `// Generated by Flash AI Agent
// Prompt: {{prompt}}

const express = require('express');
const bcrypt = require('bcrypt');
const jwt = require('jsonwebtoken');

const app = express();
app.use(express.json());

// In-memory user storage (use database in production)
const users = new Map();

// Register endpoint
app.post('/api/register', async (req, res) => {
  const { email, password } = req.body;

  if (users.has(email)) {
    return res.status(400).json({ error: 'Email already registered' });
  }

  const hashedPassword = await bcrypt.hash(password, 10);
  users.set(email, { email, password: hashedPassword });

  res.status(201).json({ message: 'User registered successfully' });
});

// Login endpoint
app.post('/api/login', async (req, res) => {
  const { email, password } = req.body;

  const user = users.get(email);
  if (!user) {
    return res.status(401).json({ error: 'Invalid credentials' });
  }

  const isValid = await bcrypt.compare(password, user.password);
  if (!isValid) {
    return res.status(401).json({ error: 'Invalid credentials' });
  }

  const token = jwt.sign({ email }, 'your-secret-key', { expiresIn: '24h' });
  res.json({ token, message: 'Login successful' });
});

const PORT = process.env.PORT || 3000;
app.listen(PORT, () => {
  console.log(` + "`Server running on port ${PORT}`" + `);
});
`,
	models.LanguageTypeScript: `// Generated by Flash AI Agent
// Prompt: {{prompt}}

import express, { Request, Response } from 'express';
import bcrypt from 'bcrypt';
import jwt from 'jsonwebtoken';

const app = express();
app.use(express.json());

interface User {
  email: string;
  password: string;
}

const users = new Map<string, User>();

app.post('/api/register', async (req: Request, res: Response) => {
  const { email, password } = req.body;

  if (users.has(email)) {
    return res.status(400).json({ error: 'Email already registered' });
  }

  const hashedPassword = await bcrypt.hash(password, 10);
  users.set(email, { email, password: hashedPassword });

  res.status(201).json({ message: 'User registered successfully' });
});

app.post('/api/login', async (req: Request, res: Response) => {
  const { email, password } = req.body;

  const user = users.get(email);
  if (!user) {
    return res.status(401).json({ error: 'Invalid credentials' });
  }

  const isValid = await bcrypt.compare(password, user.password);
  if (!isValid) {
    return res.status(401).json({ error: 'Invalid credentials' });
  }

  const token = jwt.sign({ email }, process.env.JWT_SECRET || 'secret', { expiresIn: '24h' });
  res.json({ token, message: 'Login successful' });
});

const PORT = process.env.PORT || 3000;
app.listen(PORT, () => console.log(` + "`Server on port ${PORT}`" + `));
`,
}

// ResolveLanguage maps a requested language to one that has a canned template.
// Languages without a template resolve to python.
func ResolveLanguage(language string) string {
	if _, ok := codeTemplates[language]; ok {
		return language
	}
	return models.DefaultLanguage
}

// Template renders the canned artifact for language with prompt echoed into its header
func Template(language, prompt string) string {
	return strings.Replace(codeTemplates[ResolveLanguage(language)], promptPlaceholder, prompt, 1)
}
